package step

import (
	"strings"

	"github.com/google/shlex"

	appErr "autograde/pkg/errors"
)

// filesArg is the one template field that expands to several arguments.
const filesArg = "${files}"

// buildCommand splits a command template into arguments and expands each
// one separately, so substituted values never split into extra arguments.
func buildCommand(tpl string, lookup func(string) (string, bool), files []string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidStepConfig).WithMessage("command template is required")
	}
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidStepConfig, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidStepConfig).WithMessage("command is empty after parsing")
	}
	args := make([]string, 0, len(fields)+len(files))
	for _, field := range fields {
		if field == filesArg {
			args = append(args, files...)
			continue
		}
		expanded, err := expand(field, lookup)
		if err != nil {
			return nil, err
		}
		args = append(args, expanded)
	}
	if args[0] == "" {
		return nil, appErr.New(appErr.InvalidStepConfig).WithMessage("command is empty after expansion")
	}
	return args, nil
}
