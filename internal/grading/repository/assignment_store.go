package repository

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
)

// AssignmentConfig holds the defaults for assignment directories that leave
// out their max score or submission type.
type AssignmentConfig struct {
	Root         string
	DefaultTotal int
	DefaultType  string
}

// AssignmentStore resolves assignments from the directories under the
// graded root. Directories are named <A01>-<YYYYMMDD-HHMM>[-<max>][-<type>].
type AssignmentStore struct {
	cfg   AssignmentConfig
	types map[string]model.SubmissionType
}

// NewAssignmentStore creates a store. types maps submission type names to
// their definitions.
func NewAssignmentStore(cfg AssignmentConfig, types map[string]model.SubmissionType) *AssignmentStore {
	return &AssignmentStore{cfg: cfg, types: types}
}

// Root returns the graded root directory.
func (s *AssignmentStore) Root() string {
	return s.cfg.Root
}

// Resolve loads one assignment by name.
func (s *AssignmentStore) Resolve(ctx context.Context, name string) (model.Assignment, error) {
	if !ValidAssignmentName(name) {
		return model.Assignment{}, appErr.ValidationError("assignment", "must look like A01 or A01b")
	}
	matches, err := s.matching(name)
	if err != nil {
		return model.Assignment{}, err
	}
	switch len(matches) {
	case 0:
		return model.Assignment{}, appErr.ConfigError(appErr.AssignmentNotFound, name)
	case 1:
	default:
		return model.Assignment{}, appErr.ConfigError(appErr.DuplicateAssignment, name).
			WithDetail("dirs", matches)
	}

	dir := matches[0]
	parsed, ok := parseAssignmentDir(dir)
	if !ok || parsed.name != name {
		return model.Assignment{}, appErr.ConfigError(appErr.BadAssignmentDir, dir)
	}
	due, err := model.ParseTimestamp(parsed.due)
	if err != nil {
		return model.Assignment{}, appErr.ConfigError(appErr.BadAssignmentDir, dir)
	}
	a := model.Assignment{
		Name:     name,
		Dir:      dir,
		Path:     filepath.Join(s.cfg.Root, dir),
		Due:      due,
		MaxScore: s.cfg.DefaultTotal,
		TypeName: s.cfg.DefaultType,
	}
	if parsed.hasMax {
		a.MaxScore = parsed.maxScore
	}
	if parsed.typeName != "" {
		a.TypeName = parsed.typeName
	}
	if _, ok := s.types[a.TypeName]; !ok {
		return model.Assignment{}, appErr.ConfigError(appErr.UndefinedSubmissionType, a.TypeName).
			WithDetail("assignment", name)
	}
	return a, nil
}

// Type returns the submission type an assignment uses.
func (s *AssignmentStore) Type(a model.Assignment) (model.SubmissionType, error) {
	t, ok := s.types[a.TypeName]
	if !ok {
		return model.SubmissionType{}, appErr.ConfigError(appErr.UndefinedSubmissionType, a.TypeName)
	}
	return t, nil
}

// List returns the sorted names of all assignments under the graded root.
func (s *AssignmentStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Root)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "read graded root failed")
	}
	seen := make(map[string]bool)
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if parsed, ok := parseAssignmentDir(entry.Name()); ok && !seen[parsed.name] {
			seen[parsed.name] = true
			names = append(names, parsed.name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// matching returns the directory names that start with "<name>-".
func (s *AssignmentStore) matching(name string) ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Root)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "read graded root failed")
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), name+"-") {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
