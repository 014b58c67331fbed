package content

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var (
	ErrRTFUnbalanced = errors.New("rtf: unbalanced braces")
	ErrRTFTruncated  = errors.New("rtf: truncated control sequence")
)

// rtfDestinations are groups that carry no document text.
var rtfDestinations = map[string]bool{
	"fonttbl":            true,
	"colortbl":           true,
	"stylesheet":         true,
	"info":               true,
	"pict":               true,
	"object":             true,
	"header":             true,
	"footer":             true,
	"headerl":            true,
	"headerr":            true,
	"footerl":            true,
	"footerr":            true,
	"listtable":          true,
	"listoverridetable":  true,
	"rsidtbl":            true,
	"generator":          true,
	"xmlnstbl":           true,
	"themedata":          true,
	"colorschememapping": true,
	"latentstyles":       true,
	"datastore":          true,
	"filetbl":            true,
	"revtbl":             true,
	"expandedcolortbl":   true,
}

// rtfSymbols maps control words that stand for a single character.
var rtfSymbols = map[string]string{
	"par":       "\n\n",
	"sect":      "\n\n",
	"page":      "\n\n",
	"line":      "\n",
	"tab":       "\t",
	"emdash":    "—",
	"endash":    "–",
	"bullet":    "•",
	"lquote":    "‘",
	"rquote":    "’",
	"ldblquote": "“",
	"rdblquote": "”",
	"emspace":   " ",
	"enspace":   " ",
}

var excessNewlinesRe = regexp.MustCompile(`\n{3,}`)

type rtfGroup struct {
	skip bool
	uc   int
}

// rtfToText strips RTF control sequences and returns the document text.
// Code page escapes (\'hh) are decoded as Windows-1252.
func rtfToText(src string) (string, error) {
	var (
		out     strings.Builder
		stack   []rtfGroup
		cur     = rtfGroup{uc: 1}
		pending int  // characters still to skip after a \uN escape
		high    rune // leading half of a UTF-16 surrogate pair
		decoder = charmap.Windows1252
	)

	flushHigh := func() {
		if high != 0 {
			out.WriteRune(utf8.RuneError)
			high = 0
		}
	}
	emit := func(s string) {
		if cur.skip {
			return
		}
		if pending > 0 {
			pending--
			return
		}
		flushHigh()
		out.WriteString(s)
	}

	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch ch {
		case '{':
			stack = append(stack, cur)
		case '}':
			if len(stack) == 0 {
				return "", ErrRTFUnbalanced
			}
			cur = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			pending = 0
		case '\r', '\n':
		case '\\':
			if i+1 >= len(src) {
				return "", ErrRTFTruncated
			}
			next := src[i+1]
			switch {
			case next == '\\' || next == '{' || next == '}':
				emit(src[i+1 : i+2])
				i++
			case next == '\'':
				if i+3 >= len(src) {
					return "", ErrRTFTruncated
				}
				b, err := strconv.ParseUint(src[i+2:i+4], 16, 8)
				if err != nil {
					return "", errors.Join(ErrRTFTruncated, err)
				}
				emit(string(decoder.DecodeByte(byte(b))))
				i += 3
			case next == '*':
				cur.skip = true
				i++
			case next == '~':
				emit(" ")
				i++
			case next == '_':
				emit("-")
				i++
			case next == '-':
				i++
			case next == '\r' || next == '\n':
				emit("\n\n")
				i++
			case isASCIILetter(next):
				j := i + 1
				for j < len(src) && isASCIILetter(src[j]) {
					j++
				}
				word := src[i+1 : j]
				k := j
				if k < len(src) && src[k] == '-' {
					k++
				}
				for k < len(src) && src[k] >= '0' && src[k] <= '9' {
					k++
				}
				param, hasParam := 0, false
				if k > j {
					if n, err := strconv.Atoi(src[j:k]); err == nil {
						param, hasParam = n, true
					}
				}
				if k < len(src) && src[k] == ' ' {
					k++
				}
				i = k - 1

				switch {
				case rtfDestinations[word]:
					cur.skip = true
				case word == "uc" && hasParam:
					cur.uc = param
				case word == "u" && hasParam:
					if param < 0 {
						param += 65536
					}
					r := rune(param)
					switch {
					case cur.skip:
					case r >= 0xD800 && r <= 0xDBFF:
						flushHigh()
						high = r
					case r >= 0xDC00 && r <= 0xDFFF && high != 0:
						pair := utf16.DecodeRune(high, r)
						high = 0
						emit(string(pair))
					default:
						emit(string(r))
					}
					if !cur.skip {
						pending = cur.uc
					}
				default:
					if s, ok := rtfSymbols[word]; ok {
						emit(s)
					}
				}
			default:
				i++
			}
		default:
			emit(src[i : i+1])
		}
	}

	if len(stack) != 0 {
		return "", ErrRTFUnbalanced
	}
	flushHigh()

	text := excessNewlinesRe.ReplaceAllString(out.String(), "\n\n")
	return strings.TrimSpace(text), nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func convertRTF(text string) (string, Metadata, *Warning) {
	md := Metadata{Type: string(FormatRTF)}
	plain, err := rtfToText(text)
	if err != nil {
		return textToParagraphs(text), md, &Warning{Format: FormatRTF, Message: "rtf parse failed, wrapped raw text", Err: err}
	}
	return textToParagraphs(plain), md, nil
}
