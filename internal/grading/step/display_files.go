package step

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

// DisplayFiles shows the contents of workspace files matching globs, which
// is how unzipped text gets in front of the submitter.
type DisplayFiles struct {
	Base
	globs []string
}

func (s *DisplayFiles) Run(ctx context.Context, sc *Context) (Report, error) {
	seen := make(map[string]bool)
	var shown []string
	var b strings.Builder
	for _, g := range s.globs {
		matches, err := filepath.Glob(filepath.Join(sc.Workspace, g))
		if err != nil {
			return Report{}, appErr.Wrapf(err, appErr.InvalidStepConfig, "bad display glob %q", g)
		}
		sort.Strings(matches)
		for _, path := range matches {
			rel, err := filepath.Rel(sc.Workspace, path)
			if err != nil || seen[rel] {
				continue
			}
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return Report{}, appErr.Wrapf(err, appErr.GraderCrash, "read %s failed", rel)
			}
			seen[rel] = true
			display := "./" + filepath.ToSlash(rel)
			shown = append(shown, display)
			b.WriteString("<div class=\"file\">\n")
			b.WriteString("<h4>" + model.EscapeText(display) + "</h4>\n")
			b.WriteString("<pre>" + model.EscapeText(string(content)) + "</pre>\n</div>\n")
		}
	}
	sc.Set(KindDisplayFiles, "filenames", strings.Join(shown, "\n"))
	logger.Debug(ctx, "displayed files", zap.Int("count", len(shown)), zap.Strings("globs", s.globs))
	if len(shown) == 0 {
		return Report{Passed: false, Grade: model.XGrade}, nil
	}
	return Report{Passed: true, Grade: model.OKGrade, Output: b.String()}, nil
}
