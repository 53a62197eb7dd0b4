package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alanyoungcy/nearbot/internal/domain"
	"github.com/alanyoungcy/nearbot/internal/feed"
)

const replayExt = ".jsonl"

// ReplayControl is the playback surface of the replay source.
type ReplayControl interface {
	LoadFile(path string) (int, error)
	Load(src io.Reader, source string) (int, error)
	Start()
	Stop()
	Pause()
	Resume()
	Step() (ended bool)
	SetSpeed(multiplier float64)
	Speed() float64
	Running() bool
	Source() string
	Progress() (feed.Progress, bool)
}

// ReplayHandler lists, loads and drives replay data.
type ReplayHandler struct {
	replay     ReplayControl
	dir        string
	blobs      domain.BlobReader
	blobPrefix string
	logger     *slog.Logger
}

// NewReplayHandler creates a ReplayHandler. Local files are served from dir;
// blobs may be nil when object storage is disabled.
func NewReplayHandler(replay ReplayControl, dir string, blobs domain.BlobReader, blobPrefix string, logger *slog.Logger) *ReplayHandler {
	return &ReplayHandler{
		replay:     replay,
		dir:        dir,
		blobs:      blobs,
		blobPrefix: blobPrefix,
		logger:     logHandler(logger, "replay"),
	}
}

// ReplayFile is one loadable replay source.
type ReplayFile struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	BlobKey string `json:"blobKey,omitempty"`
	Size    int64  `json:"size"`
}

type replayLoadRequest struct {
	FilePath string `json:"filePath"`
	BlobKey  string `json:"blobKey"`
}

type replaySpeedRequest struct {
	Speed *float64 `json:"speed"`
}

type replayStateResponse struct {
	OK       bool          `json:"ok"`
	Running  bool          `json:"running"`
	Speed    float64       `json:"speed"`
	Source   string        `json:"source"`
	Progress feed.Progress `json:"progress"`
}

func (h *ReplayHandler) state() replayStateResponse {
	p, _ := h.replay.Progress()
	return replayStateResponse{
		OK:       true,
		Running:  h.replay.Running(),
		Speed:    h.replay.Speed(),
		Source:   h.replay.Source(),
		Progress: p,
	}
}

// Files lists local and blob replay files.
// GET /api/replay/files
func (h *ReplayHandler) Files(w http.ResponseWriter, r *http.Request) {
	files, err := h.localFiles()
	if err != nil {
		h.logger.Warn("list local replay files", slog.String("dir", h.dir), slog.String("error", err.Error()))
	}

	if h.blobs != nil {
		infos, err := h.blobs.List(r.Context(), h.blobPrefix)
		if err != nil {
			h.logger.Warn("list blob replay files", slog.String("prefix", h.blobPrefix), slog.String("error", err.Error()))
		}
		for _, info := range infos {
			if !strings.HasSuffix(info.Path, replayExt) {
				continue
			}
			files = append(files, ReplayFile{
				Name:    path.Base(info.Path),
				BlobKey: info.Path,
				Size:    info.Size,
			})
		}
	}

	if files == nil {
		files = []ReplayFile{}
	}
	writeJSON(w, http.StatusOK, map[string][]ReplayFile{"files": files})
}

func (h *ReplayHandler) localFiles() ([]ReplayFile, error) {
	if h.dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(h.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []ReplayFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), replayExt) {
			continue
		}
		f := ReplayFile{Name: e.Name(), Path: filepath.Join(h.dir, e.Name())}
		if info, err := e.Info(); err == nil {
			f.Size = info.Size()
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Load replaces the replay data from a local file or a blob key.
// POST /api/replay/load
func (h *ReplayHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req replayLoadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.FilePath = strings.TrimSpace(req.FilePath)
	req.BlobKey = strings.TrimSpace(req.BlobKey)

	var (
		rows int
		err  error
	)
	switch {
	case req.FilePath != "":
		var p string
		p, err = resolveReplayPath(h.dir, req.FilePath)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rows, err = h.replay.LoadFile(p)
	case req.BlobKey != "":
		if h.blobs == nil {
			writeError(w, http.StatusBadRequest, "blob storage is disabled")
			return
		}
		rows, err = h.loadBlob(r.Context(), req.BlobKey)
	default:
		writeError(w, http.StatusBadRequest, "filePath or blobKey is required")
		return
	}

	if err != nil {
		h.writeLoadError(w, err)
		return
	}
	h.logger.Info("replay loaded", slog.String("source", h.replay.Source()), slog.Int("rows", rows))

	resp := h.state()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"rows":     rows,
		"source":   resp.Source,
		"progress": resp.Progress,
	})
}

func (h *ReplayHandler) loadBlob(ctx context.Context, key string) (int, error) {
	body, err := h.blobs.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return h.replay.Load(body, "blob:"+key)
}

func (h *ReplayHandler) writeLoadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoReplayData):
		writeError(w, http.StatusBadRequest, "no valid replay rows in source")
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "replay source not found")
	default:
		h.logger.Error("replay load failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// resolveReplayPath keeps loads inside dir. Bare file names are taken
// relative to dir. An empty dir allows any path.
func resolveReplayPath(dir, p string) (string, error) {
	if dir == "" {
		return filepath.Clean(p), nil
	}
	if filepath.Base(p) == p {
		p = filepath.Join(dir, p)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve replay dir: %w", err)
	}
	absPath, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve replay path: %w", err)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("filePath must be inside %s", dir)
	}
	return absPath, nil
}

// Start begins playback.
// POST /api/replay/start
func (h *ReplayHandler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.loaded() {
		writeError(w, http.StatusBadRequest, domain.ErrNoReplayData.Error())
		return
	}
	h.replay.Start()
	writeJSON(w, http.StatusOK, h.state())
}

// Stop halts playback and keeps the cursor.
// POST /api/replay/stop
func (h *ReplayHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.replay.Stop()
	writeJSON(w, http.StatusOK, h.state())
}

// Pause pauses playback.
// POST /api/replay/pause
func (h *ReplayHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.replay.Pause()
	writeJSON(w, http.StatusOK, h.state())
}

// Resume resumes paused playback.
// POST /api/replay/resume
func (h *ReplayHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if !h.loaded() {
		writeError(w, http.StatusBadRequest, domain.ErrNoReplayData.Error())
		return
	}
	h.replay.Resume()
	writeJSON(w, http.StatusOK, h.state())
}

// Step advances the cursor by one row and reports whether playback ended.
// POST /api/replay/step
func (h *ReplayHandler) Step(w http.ResponseWriter, r *http.Request) {
	if !h.loaded() {
		writeError(w, http.StatusBadRequest, domain.ErrNoReplayData.Error())
		return
	}
	ended := h.replay.Step()
	resp := h.state()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"ended":    ended,
		"progress": resp.Progress,
	})
}

// Speed sets the playback multiplier.
// POST /api/replay/speed
func (h *ReplayHandler) Speed(w http.ResponseWriter, r *http.Request) {
	var req replaySpeedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Speed == nil || math.IsNaN(*req.Speed) || math.IsInf(*req.Speed, 0) || *req.Speed <= 0 {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidSpeed.Error())
		return
	}
	h.replay.SetSpeed(*req.Speed)
	writeJSON(w, http.StatusOK, h.state())
}

// Progress reports the playback cursor.
// GET /api/replay/progress
func (h *ReplayHandler) Progress(w http.ResponseWriter, r *http.Request) {
	p, _ := h.replay.Progress()
	writeJSON(w, http.StatusOK, p)
}

func (h *ReplayHandler) loaded() bool {
	p, _ := h.replay.Progress()
	return p.Total > 0
}
