// Package api implements the push-driven Multi-Status (WebDAV 207) XML
// parser (§4.C of the specification) plus the small set of wire types the
// rest of the provider shares.
//
// The parser is deliberately fed through Feed/Finish rather than handed a
// whole io.Reader up front: callers (the PROPFIND handler) drive it with
// whatever chunks arrive off the HTTP response body, and it must report
// each <D:response> as soon as that element closes rather than waiting
// for the whole document.
package api

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const davNamespace = "DAV:"

// Property is one property reported within a <D:propstat>, or a bare
// property outside any propstat (Status 0, "no status reported" — §3
// invariant 5).
type Property struct {
	Namespace           string
	LocalName           string
	Value               string
	Status              int
	ResponseDescription string
}

// Response is one fully-parsed <D:response> element: its href (resolved
// against the parser's base URL), the properties it carries, and the
// response-level status, if the server bothered to report one (0
// otherwise).
type Response struct {
	Href       string
	Properties []Property
	Status     int
}

// state is a node in the nine-state machine described in §4.C.
type state int

const (
	stateStart state = iota
	stateMultistatus
	stateResponse
	stateHref
	statePropstat
	stateProp
	stateProperty
	statePropstatStatus
	stateResponseStatus
)

var statusLine = regexp.MustCompile(`^HTTP/\d+\.\d+ (\d{3}) `)

// Parser is a single-use, push-driven Multi-Status decoder. Create one
// with NewParser, call Feed as response bytes arrive, call Finish exactly
// once when the body is exhausted, and range over Responses() for the
// emitted events. Wait returns the terminal error, if any — including the
// "Unexpectedly reached end of input" case when the stream ends before
// </multistatus>.
type Parser struct {
	base      *url.URL
	pipeWrite *io.PipeWriter
	responses chan Response
	done      chan error
	finished  bool
}

// NewParser starts a parser that will resolve every <D:href> against
// base.
func NewParser(base *url.URL) *Parser {
	pipeRead, pipeWrite := io.Pipe()
	p := &Parser{
		base:      base,
		pipeWrite: pipeWrite,
		responses: make(chan Response, 16),
		done:      make(chan error, 1),
	}
	go p.run(pipeRead)
	return p
}

// Responses is the channel of completed <D:response> events, emitted in
// document order. It is closed once the parser finishes, whether
// cleanly or with an error.
func (p *Parser) Responses() <-chan Response { return p.responses }

// Feed supplies the next chunk of the response body. It may be called
// with arbitrarily sized, arbitrarily split chunks — the event sequence
// produced is the same regardless of how the input is chunked. It blocks
// until the decoder has drained the previous chunk, which is the
// parser's only form of backpressure.
func (p *Parser) Feed(chunk []byte) error {
	_, err := p.pipeWrite.Write(chunk)
	return err
}

// Finish signals that no more bytes are coming. It must be called
// exactly once, after the last Feed call (or with none fed at all, for
// an empty body).
func (p *Parser) Finish() {
	if p.finished {
		return
	}
	p.finished = true
	_ = p.pipeWrite.Close()
}

// Wait blocks until the parser has produced its terminal result and
// returns it (nil for a clean parse). Drain Responses() concurrently
// with Wait, or the parser can deadlock once its internal channel fills.
func (p *Parser) Wait() error {
	return <-p.done
}

func (p *Parser) run(pipeRead *io.PipeReader) {
	defer close(p.responses)
	err := p.decode(xml.NewDecoder(pipeRead))
	_ = pipeRead.CloseWithError(err)
	p.done <- err
}

func (p *Parser) decode(dec *xml.Decoder) error {
	var (
		st             = stateStart
		stack          []state
		charData       strings.Builder
		unknownDepth   int
		href           string
		properties     []Property
		responseStatus int
		propstatStatus int
		propstatStart  int
		propNamespace  string
		propLocalName  string
		sawEnd         bool
	)

	push := func(next state) { stack = append(stack, st); st = next }
	pop := func() {
		n := len(stack) - 1
		st, stack = stack[n], stack[:n]
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if !sawEnd {
				return errors.New("Unexpectedly reached end of input")
			}
			return nil
		}
		if err != nil {
			var syntaxErr *xml.SyntaxError
			if !sawEnd && errors.As(err, &syntaxErr) && strings.HasPrefix(syntaxErr.Msg, "unexpected EOF") {
				return errors.New("Unexpectedly reached end of input")
			}
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if unknownDepth > 0 {
				unknownDepth++
				continue
			}
			ns, local := t.Name.Space, t.Name.Local
			switch st {
			case stateStart:
				if ns == davNamespace && local == "multistatus" {
					push(stateMultistatus)
				} else {
					unknownDepth++
				}
			case stateMultistatus:
				if ns == davNamespace && local == "response" {
					href, properties, responseStatus = "", nil, 0
					push(stateResponse)
				} else {
					unknownDepth++
				}
			case stateResponse:
				switch {
				case ns == davNamespace && local == "href":
					charData.Reset()
					push(stateHref)
				case ns == davNamespace && local == "propstat":
					propstatStart = len(properties)
					propstatStatus = 0
					push(statePropstat)
				case ns == davNamespace && local == "status":
					charData.Reset()
					push(stateResponseStatus)
				default:
					unknownDepth++
				}
			case statePropstat:
				switch {
				case ns == davNamespace && local == "prop":
					push(stateProp)
				case ns == davNamespace && local == "status":
					charData.Reset()
					push(statePropstatStatus)
				default:
					unknownDepth++
				}
			case stateProp:
				propNamespace, propLocalName = ns, local
				charData.Reset()
				push(stateProperty)
			case stateProperty:
				if ns == davNamespace && local == "collection" {
					charData.WriteString("DAV:collection")
				}
				unknownDepth++
			default:
				unknownDepth++
			}

		case xml.EndElement:
			if unknownDepth > 0 {
				unknownDepth--
				continue
			}
			switch st {
			case stateHref:
				hrefURL, perr := url.Parse(strings.TrimSpace(charData.String()))
				if perr != nil {
					return fmt.Errorf("invalid href %q: %w", charData.String(), perr)
				}
				href = p.base.ResolveReference(hrefURL).String()
				pop()
			case stateResponseStatus:
				responseStatus = parseStatusLine(charData.String())
				pop()
			case statePropstatStatus:
				propstatStatus = parseStatusLine(charData.String())
				pop()
			case stateProperty:
				properties = append(properties, Property{
					Namespace: propNamespace,
					LocalName: propLocalName,
					Value:     charData.String(),
				})
				pop()
			case stateProp:
				pop()
			case statePropstat:
				for i := propstatStart; i < len(properties); i++ {
					properties[i].Status = propstatStatus
				}
				pop()
			case stateResponse:
				p.responses <- Response{Href: href, Properties: properties, Status: responseStatus}
				pop()
			case stateMultistatus:
				sawEnd = true
				pop()
			}

		case xml.CharData:
			if st == stateHref || st == stateProperty || st == statePropstatStatus || st == stateResponseStatus {
				charData.Write(t)
			}
		}
	}
}

func parseStatusLine(s string) int {
	m := statusLine.FindStringSubmatch(s)
	if len(m) != 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
