// Package detect infers the platform, byte encoding, and field delimiter of
// an export file before parsing. Detection is best-effort: every path has a
// deterministic fallback so the parser is never left without an answer.
package detect

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"

	"github.com/soundledger/stream-ingest-iq/internal/platform"
)

const (
	// DefaultSampleBytes is how much of a file the encoding sniffer reads.
	DefaultSampleBytes = 64 * 1024

	// minDelimiterScore is the lowest candidate score that beats the
	// platform's declared default delimiter. A score of 2 means the
	// candidate produced at least two fields per sample line.
	minDelimiterScore = 2.0
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// candidateDelimiters are scored in this order; earlier wins ties.
var candidateDelimiters = []rune{'\t', ',', ';', '|'}

// Detector performs platform, encoding, and delimiter detection against the
// platform registry.
type Detector struct {
	registry    *platform.Registry
	sampleBytes int
}

// NewDetector creates a detector. sampleBytes <= 0 selects DefaultSampleBytes.
func NewDetector(registry *platform.Registry, sampleBytes int) *Detector {
	if sampleBytes <= 0 {
		sampleBytes = DefaultSampleBytes
	}
	return &Detector{registry: registry, sampleBytes: sampleBytes}
}

// DetectPlatform scans the path and file name for platform alias tokens,
// checking platforms in catalog order. The second return is false when no
// platform matches; callers must treat that as fatal for the file.
func (d *Detector) DetectPlatform(path string) (string, bool) {
	lower := strings.ToLower(path)
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, cfg := range d.registry.All() {
		for _, alias := range cfg.Aliases {
			if aliasMatches(lower, tokens, alias) {
				return cfg.Code, true
			}
		}
	}
	return "", false
}

// aliasMatches guards the short aliases against accidental substring hits:
// "awa" must be a whole path token so that "awards_vevo.tsv" does not match
// it, while longer aliases may sit inside a token ("applemusic" still
// resolves through "apple").
func aliasMatches(lower string, tokens []string, alias string) bool {
	if len(alias) > 4 {
		return strings.Contains(lower, alias)
	}
	for _, tok := range tokens {
		if tok == alias {
			return true
		}
	}
	return false
}

// DetectEncoding returns the name of the encoding the file should be read
// with. It builds a candidate list (UTF-8 variants, Windows-1252, Latin-1,
// plus the platform's declared priority list), consults a statistical
// charset classifier on a leading sample, and verifies candidates by
// decoding the whole file. UTF-8 is the answer of last resort.
//
// A plain-ASCII classifier verdict is distrusted: if any byte >= 0x80 exists
// the verdict is overridden to UTF-8 so the verification loop decides.
func (d *Detector) DetectEncoding(path string, cfg *platform.Config) string {
	sample, err := readSample(path, d.sampleBytes)
	if err != nil || len(sample) == 0 {
		return "utf-8"
	}

	candidates := d.buildCandidates(cfg)

	verdict := ""
	if best, err := chardet.NewTextDetector().DetectBest(sample); err == nil {
		verdict = normalizeEncodingName(best.Charset)
	}
	if verdict == "ascii" {
		// Statistical sniffers report ASCII for short or mostly-ASCII
		// samples even when high bytes appear later in the file. ASCII is a
		// UTF-8 subset, so the verdict is always overridden to UTF-8 and
		// left to full-file verification.
		verdict = "utf-8"
	}

	full, err := os.ReadFile(path)
	if err != nil {
		return "utf-8"
	}
	if (verdict == "utf-8" || verdict == "utf-8-bom") && decodesCleanly(full, verdict) {
		return verdict
	}
	for _, name := range candidates {
		if decodesCleanly(full, name) {
			return name
		}
	}
	return "utf-8"
}

// DecodeFile reads the file and converts it to UTF-8 text using the named
// encoding. When the bytes do not form valid text in that encoding, invalid
// sequences are substituted rather than reported as an error; only I/O
// failures are returned.
func (d *Detector) DecodeFile(path, encodingName string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return decodeText(data, encodingName), nil
}

// DetectDelimiter scores each candidate separator against the sample lines:
// the score is the mean field count, doubled when every line yields the same
// count. The best candidate wins if it clears minDelimiterScore; otherwise
// the platform's declared delimiter is used.
func (d *Detector) DetectDelimiter(sampleLines []string, cfg *platform.Config) rune {
	best := cfg.DelimiterRune()
	bestScore := 0.0

	for _, cand := range candidateDelimiters {
		total := 0
		consistent := true
		first := -1
		lines := 0
		for _, line := range sampleLines {
			if line == "" {
				continue
			}
			fields := strings.Count(line, string(cand)) + 1
			if first == -1 {
				first = fields
			} else if fields != first {
				consistent = false
			}
			total += fields
			lines++
		}
		if lines == 0 {
			continue
		}
		score := float64(total) / float64(lines)
		if consistent && first > 1 {
			score *= 2
		}
		if score > bestScore && score >= minDelimiterScore {
			bestScore = score
			best = cand
		}
	}
	return best
}

// SampleLines returns up to n non-empty lines from the decoded text, used to
// feed delimiter detection.
func SampleLines(text string, n int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return lines
}

func (d *Detector) buildCandidates(cfg *platform.Config) []string {
	base := []string{"utf-8", "utf-8-bom", "windows-1252", "latin-1"}
	if cfg != nil {
		for _, name := range cfg.EncodingPriority {
			base = append(base, normalizeEncodingName(name))
		}
	}
	seen := make(map[string]bool, len(base))
	var out []string
	for _, name := range base {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func readSample(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.Read(buf)
	if read > 0 {
		return buf[:read], nil
	}
	return nil, err
}

// decodesCleanly reports whether data is valid text in the named encoding.
// Only the UTF-8 variants can actually reject input: the single-byte code
// pages accept every byte value, which makes them effective fallbacks, and
// matches the "first candidate that decodes wins" contract.
func decodesCleanly(data []byte, name string) bool {
	switch name {
	case "utf-8":
		return utf8.Valid(data)
	case "utf-8-bom":
		return bytes.HasPrefix(data, utf8BOM) && utf8.Valid(bytes.TrimPrefix(data, utf8BOM))
	default:
		_, known := decoderFor(name)
		return known
	}
}

// decodeText converts raw bytes to a UTF-8 string, substituting invalid
// sequences with the replacement rune instead of failing.
func decodeText(data []byte, name string) string {
	switch name {
	case "utf-8":
		return strings.ToValidUTF8(string(data), string(utf8.RuneError))
	case "utf-8-bom":
		return strings.ToValidUTF8(string(bytes.TrimPrefix(data, utf8BOM)), string(utf8.RuneError))
	}
	enc, ok := decoderFor(name)
	if !ok {
		return strings.ToValidUTF8(string(data), string(utf8.RuneError))
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), string(utf8.RuneError))
	}
	return string(decoded)
}

func decoderFor(name string) (encoding.Encoding, bool) {
	switch name {
	case "windows-1252":
		return charmap.Windows1252, true
	case "latin-1":
		return charmap.ISO8859_1, true
	case "shift-jis":
		return japanese.ShiftJIS, true
	default:
		return nil, false
	}
}

func normalizeEncodingName(name string) string {
	switch strings.ToLower(name) {
	case "utf-8", "utf8":
		return "utf-8"
	case "utf-8-bom", "utf-8 with bom":
		return "utf-8-bom"
	case "windows-1252", "cp1252":
		return "windows-1252"
	case "latin-1", "latin1", "iso-8859-1":
		return "latin-1"
	case "shift-jis", "shift_jis", "sjis":
		return "shift-jis"
	case "ascii", "us-ascii":
		return "ascii"
	default:
		return strings.ToLower(name)
	}
}
