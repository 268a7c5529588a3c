package pdftools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/debhub/debhub-backend/internal/logger"
)

// Tools shells out to poppler-utils. Required binaries in the runtime:
// pdftoppm (PDF -> page images) and pdfinfo (page counts).
//
// Every temp file and render directory goes through a cleanup func that the
// caller defers, so no page image outlives the extraction call.
type Tools interface {
	CountPages(ctx context.Context, pdfPath string) (int, error)
	RenderPages(ctx context.Context, pdfPath string, outDir string, dpi int) ([]string, error)
	WriteTempFile(data []byte, suffix string) (string, func(), error)
	TempDir(prefix string) (string, func(), error)
}

type tools struct {
	log *logger.Logger

	pdftoppmPath string
	pdfinfoPath  string
	workRoot     string

	renderTimeout time.Duration
}

func New(log *logger.Logger) Tools {
	return &tools{
		log:           log.With("service", "Tools"),
		pdftoppmPath:  "pdftoppm",
		pdfinfoPath:   "pdfinfo",
		workRoot:      filepath.Join(os.TempDir(), "debhub-extract"),
		renderTimeout: 2 * time.Minute,
	}
}

func (m *tools) CountPages(ctx context.Context, pdfPath string) (int, error) {
	if pdfPath == "" {
		return 0, fmt.Errorf("pdfPath required")
	}
	if _, err := exec.LookPath(m.pdfinfoPath); err != nil {
		return 0, fmt.Errorf("pdfinfo not found in PATH: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.pdfinfoPath, pdfPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %w; out=%s", err, string(out))
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		n, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || n <= 0 {
			continue
		}
		return n, nil
	}

	return 0, fmt.Errorf("pdfinfo output missing Pages field")
}

func (m *tools) RenderPages(ctx context.Context, pdfPath string, outDir string, dpi int) ([]string, error) {
	if pdfPath == "" {
		return nil, fmt.Errorf("pdfPath required")
	}
	if outDir == "" {
		return nil, fmt.Errorf("outDir required")
	}
	if _, err := exec.LookPath(m.pdftoppmPath); err != nil {
		return nil, fmt.Errorf("pdftoppm not found in PATH: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir outDir: %w", err)
	}
	if dpi <= 0 {
		dpi = 150
	}

	ctx, cancel := context.WithTimeout(ctx, m.renderTimeout)
	defer cancel()

	prefix := filepath.Join(outDir, "page")
	args := []string{"-r", strconv.Itoa(dpi), "-png", pdfPath, prefix}

	cmd := exec.CommandContext(ctx, m.pdftoppmPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w; out=%s", err, string(out))
	}

	paths, err := globSorted(outDir, `^page-\d+\.png$`)
	if err != nil || len(paths) == 0 {
		return nil, fmt.Errorf("no images produced by pdftoppm; out=%s", string(out))
	}
	return paths, nil
}

func (m *tools) WriteTempFile(data []byte, suffix string) (string, func(), error) {
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return "", nil, fmt.Errorf("create workRoot: %w", err)
	}
	f, err := os.CreateTemp(m.workRoot, "doc-*"+suffix)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}

func (m *tools) TempDir(prefix string) (string, func(), error) {
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return "", nil, fmt.Errorf("create workRoot: %w", err)
	}
	dir, err := os.MkdirTemp(m.workRoot, prefix+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func globSorted(dir string, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if re.MatchString(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
