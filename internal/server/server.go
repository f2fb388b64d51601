// Package server exposes the generator over HTTP: generation jobs,
// icon set management, export downloads and a websocket progress feed.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/spotforge/spotforge/internal/config"
	"github.com/spotforge/spotforge/internal/deck"
	"github.com/spotforge/spotforge/internal/icons"
	"github.com/spotforge/spotforge/internal/job"
	"github.com/spotforge/spotforge/internal/layout"
	"github.com/spotforge/spotforge/internal/render"
)

// State is the running server's shared state, handed to the caller
// through the started channel once the listener is up.
type State struct {
	Address string
	Cfg     config.Config
	Icons   *icons.Store
	Jobs    *job.Store
	Runner  *job.Runner
}

// Run starts the server and blocks until the context is canceled.
// addr may be empty to pick a free localhost port.
func Run(ctx context.Context, addr string, cfg config.Config, started chan<- *State) error {
	state, err := NewState(cfg)
	if err != nil {
		return err
	}

	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	state.Address = ln.Addr().String()

	srv := &http.Server{Handler: state.Routes()}
	go func() {
		klog.Infof("Server started on %s", state.Address)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			klog.Errorf("Server error: %v", err)
		}
	}()
	if started != nil {
		started <- state
	}

	<-ctx.Done()

	// Graceful shutdown with 5 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	klog.Info("Shutting down server...")
	return srv.Shutdown(shutdownCtx)
}

// NewState builds the stores and runner for the given configuration.
func NewState(cfg config.Config) (*State, error) {
	iconStore, err := icons.NewStore(cfg.DefaultIconsDir, cfg.IconsDir())
	if err != nil {
		return nil, err
	}
	jobStore, err := job.NewStore(cfg.ExportsDir())
	if err != nil {
		return nil, err
	}
	return &State{
		Cfg:    cfg,
		Icons:  iconStore,
		Jobs:   jobStore,
		Runner: job.New(iconStore, jobStore, cfg),
	}, nil
}

// Routes builds the gin engine with all endpoints registered.
func (s *State) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.POST("/generate", s.generate)
		api.GET("/jobs/:id", s.getJob)
		api.GET("/jobs/:id/ws", s.jobWS)
		api.GET("/icon_sets", s.listIconSets)
		api.GET("/icons/:set/:filename", s.serveIcon)
		api.POST("/upload_icons", s.uploadIcons)
		api.POST("/delete_icon_set", s.deleteIconSet)
		api.GET("/exports", s.listExports)
		api.POST("/delete_export", s.deleteExport)
		api.GET("/qr", s.qr)
	}
	r.GET("/exports/:filename", s.serveExport)
	return r
}

func (s *State) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
}

func (s *State) generate(c *gin.Context) {
	var p job.Params
	if err := c.BindJSON(&p); err != nil {
		return // BindJSON already wrote the 400
	}
	j, err := s.Runner.Start(p)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, deck.ErrDeckInfeasible),
			errors.Is(err, deck.ErrInsufficientIcons),
			errors.Is(err, layout.ErrCanvasTooSmall),
			errors.Is(err, layout.ErrUnknownStrategy),
			errors.Is(err, layout.ErrBadOptions):
			status = http.StatusBadRequest
		case errors.Is(err, icons.ErrSetNotFound):
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "job": j})
}

func (s *State) getJob(c *gin.Context) {
	j, ok := s.Jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "job": j})
}

func (s *State) listIconSets(c *gin.Context) {
	sets, err := s.Icons.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "icon_sets": sets})
}

// serveIcon returns one icon image for set previews.
func (s *State) serveIcon(c *gin.Context) {
	set, err := s.Icons.Load(c.Param("set"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, icons.ErrSetNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "message": err.Error()})
		return
	}
	path, ok := set.Path(filepath.Base(c.Param("filename")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "icon not found"})
		return
	}
	c.File(path)
}

func (s *State) uploadIcons(c *gin.Context) {
	name := c.PostForm("set_name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "set_name is required"})
		return
	}
	form, err := c.MultipartForm()
	if err != nil || len(form.File["icons"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "no icon files uploaded"})
		return
	}
	var uploads []icons.Upload
	for _, fh := range form.File["icons"] {
		fd, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		data, err := io.ReadAll(fd)
		fd.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		uploads = append(uploads, icons.Upload{Name: fh.Filename, Data: data})
	}
	info, err := s.Icons.Save(name, uploads)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "set": info})
}

func (s *State) deleteIconSet(c *gin.Context) {
	var req struct {
		IconSet string `json:"icon_set"`
	}
	if err := c.BindJSON(&req); err != nil {
		return
	}
	if err := s.Icons.Delete(req.IconSet); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, icons.ErrSetNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *State) listExports(c *gin.Context) {
	limit := 20
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "jobs": s.Jobs.Recent(limit)})
}

func (s *State) deleteExport(c *gin.Context) {
	var req struct {
		JobID string `json:"job_id"`
	}
	if err := c.BindJSON(&req); err != nil {
		return
	}
	if err := s.Jobs.Delete(req.JobID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *State) serveExport(c *gin.Context) {
	name := filepath.Base(c.Param("filename"))
	c.File(filepath.Join(s.Cfg.ExportsDir(), name))
}

func (s *State) qr(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "text is required"})
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))
	png, err := render.QRPNG(text, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
