package enrichment

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/api/schemas"
)

// TermFile resolves HPO display names from a tab-separated id-to-name table
// loaded once at startup. Unknown ids resolve to (nil, nil) so enrichment
// falls back to the raw id.
type TermFile struct {
	names map[string]string
}

var _ schemas.TermLookup = (*TermFile)(nil)

// LoadTermFile reads a two-column TSV of term id and display name. Blank
// lines and lines starting with '#' are skipped; malformed lines are
// rejected so a truncated download fails loudly rather than silently
// dropping names.
func LoadTermFile(path string, logger *zap.Logger) (*TermFile, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &schemas.ConfigurationError{Resource: "HPO term table", Err: err}
	}
	defer f.Close()

	names := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
			return nil, &schemas.ConfigurationError{
				Resource: "HPO term table",
				Err:      fmt.Errorf("%s:%d: expected id<TAB>name, got %q", path, lineNo, line),
			}
		}
		names[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, &schemas.ConfigurationError{Resource: "HPO term table", Err: err}
	}

	logger.Info("HPO term table loaded", zap.String("path", path), zap.Int("terms", len(names)))
	return &TermFile{names: names}, nil
}

func (t *TermFile) GetTerm(_ context.Context, termID string) (*schemas.TermInfo, error) {
	name, ok := t.names[termID]
	if !ok {
		return nil, nil
	}
	return &schemas.TermInfo{Name: name}, nil
}
