package step

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/fsutil"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultMaxExtractBytes = 64 << 20

// errExtractLimit aborts an archive that unpacks past the size limit.
var errExtractLimit = errors.New("archive exceeds extraction limit")

// Unzip extracts the main file, a .zip or .tar.zst archive, into the
// workspace. Members that are absolute, climb out with "..", or are links are
// skipped and listed. The step fails when any member was skipped or nothing
// was extracted.
type Unzip struct {
	Base
	maxBytes int64
}

// member is one archive entry as seen by the extractor.
type member struct {
	name string
	dir  bool
	link bool
	// special marks entries that are neither files, dirs nor links.
	special bool
	mode    os.FileMode
	open    func() (io.ReadCloser, error)
}

func (s *Unzip) Run(ctx context.Context, sc *Context) (Report, error) {
	archive := filepath.Join(sc.Workspace, sc.Filename)
	var out strings.Builder
	var extracted []string
	skipped := 0
	budget := s.maxBytes

	visit := func(m member) error {
		out.WriteString(m.name)
		if reason := rejectMember(m); reason != "" {
			skipped++
			out.WriteString(" [SKIPPED: " + reason + "]\n")
			return nil
		}
		target, err := fsutil.SafeJoin(sc.Workspace, m.name)
		if err != nil {
			skipped++
			out.WriteString(" [SKIPPED: Would extract to outside of workspace.]\n")
			return nil
		}
		out.WriteString("\n")
		if m.dir {
			return os.MkdirAll(target, 0755)
		}
		n, err := writeMember(target, m, budget)
		budget -= n
		if err != nil {
			return err
		}
		extracted = append(extracted, filepath.ToSlash(filepath.Clean(m.name)))
		return nil
	}

	var err error
	switch {
	case strings.HasSuffix(archive, ".zip"):
		err = walkZip(archive, visit)
	case strings.HasSuffix(archive, ".tar.zst"), strings.HasSuffix(archive, ".tzst"):
		err = walkTarZstd(archive, visit)
	default:
		return Report{}, appErr.Newf(appErr.InvalidStepConfig, "unzip cannot handle %s", sc.Filename)
	}

	sc.Set(KindUnzip, "extracted", strings.Join(extracted, "\n"))
	if err != nil {
		out.WriteString("...\nABORTING: Could not correctly extract one of the files.\n")
		out.WriteString("This is probably due to the archive being corrupted or too large.\n")
		logger.Warn(ctx, "extraction aborted", zap.String("archive", sc.Filename), zap.Error(err))
		return Report{Passed: false, Grade: model.XGrade, Output: out.String()}, nil
	}
	if len(extracted) == 0 && skipped == 0 {
		out.WriteString("[No files found in archive.]\n")
	}
	logger.Debug(ctx, "extracted archive",
		zap.Int("extracted", len(extracted)), zap.Int("skipped", skipped))
	if len(extracted) == 0 || skipped > 0 {
		return Report{Passed: false, Grade: model.XGrade, Output: out.String()}, nil
	}
	return Report{Passed: true, Grade: model.OKGrade, Output: out.String()}, nil
}

func rejectMember(m member) string {
	switch {
	case m.name == "":
		return "Empty member name."
	case m.link:
		return "Links are not extracted."
	case m.special:
		return "Not a regular file or directory."
	case filepath.IsAbs(m.name) || strings.HasPrefix(m.name, "/") || strings.HasPrefix(m.name, `\`):
		return "Absolute path."
	}
	return ""
}

func writeMember(target string, m member, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, err
	}
	rc, err := m.open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	mode := m.mode.Perm()
	if mode == 0 {
		mode = 0644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, io.LimitReader(rc, budget+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}
	if n > budget {
		return n, errExtractLimit
	}
	return n, nil
}

func walkZip(path string, visit func(member) error) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		mode := f.Mode()
		m := member{
			name:    f.Name,
			dir:     mode.IsDir() || strings.HasSuffix(f.Name, "/"),
			link:    mode&os.ModeSymlink != 0,
			special: mode&(os.ModeNamedPipe|os.ModeSocket|os.ModeDevice|os.ModeCharDevice) != 0,
			mode:    mode,
			open:    f.Open,
		}
		if err := visit(m); err != nil {
			return err
		}
	}
	return nil
}

func walkTarZstd(path string, visit func(member) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		m := member{
			name: hdr.Name,
			dir:  hdr.Typeflag == tar.TypeDir,
			link: hdr.Typeflag == tar.TypeSymlink || hdr.Typeflag == tar.TypeLink,
			mode: os.FileMode(hdr.Mode),
			open: func() (io.ReadCloser, error) { return io.NopCloser(tr), nil },
		}
		m.special = !m.dir && !m.link && hdr.Typeflag != tar.TypeReg
		if err := visit(m); err != nil {
			return err
		}
	}
}
