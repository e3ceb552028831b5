// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mlnoga/spotlight/internal/config"
	"github.com/mlnoga/spotlight/internal/ops"
	"github.com/mlnoga/spotlight/internal/pass"
	"github.com/mlnoga/spotlight/internal/spot"
	"github.com/mlnoga/spotlight/internal/synth"
	"github.com/mlnoga/spotlight/web"
)

// Serves spot extraction over HTTP. All requests share one pass executor
type Server struct {
	Config *config.Config
	Exec   pass.Executor
	Log    io.Writer
}

func NewServer(cfg *config.Config, exec pass.Executor, logWriter io.Writer) *Server {
	return &Server{Config: cfg, Exec: exec, Log: logWriter}
}

// Sets up the routes
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(s.Log), gin.Recovery())
	r.GET("/", getIndex)
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.GET("/config", s.getConfig)
			v1.POST("/extract", s.postExtract)
			v1.POST("/synth", s.postSynth)
			v1.POST("/ops", s.postOps)
		}
	}
	return r
}

// Listens and serves on the configured address until an error occurs
func (s *Server) Serve() error {
	fmt.Fprintf(s.Log, "Listening on http://%s\n", s.Config.Serve.Addr)
	return s.Router().Run(s.Config.Serve.Addr)
}

func getIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.Config.Pipeline)
}

// Per image results of a request
type imageResult struct {
	ID       int               `json:"id"`
	FileName string            `json:"fileName"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Spots    []spot.Spot       `json:"spots"`
	Summary  spot.Summary      `json:"summary"`
	Match    *spot.MatchResult `json:"match,omitempty"`
}

// Log output shared by concurrently materializing promises
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Materializes the given promises and replies with spots and log output
func (s *Server) run(c *gin.Context, promises []ops.Promise, ctx *ops.Context, logBuf *syncBuffer, matchRadius float32) {
	images, err := ops.MaterializeAll(promises, ctx.MaxThreads, false)
	res := gin.H{"log": logBuf.String()}
	if err != nil {
		res["error"] = err.Error()
	}
	results := make([]imageResult, 0, len(images))
	for _, f := range images {
		ir := imageResult{ID: f.ID, FileName: f.FileName, Width: f.Width(), Height: f.Height(),
			Spots: f.Spots, Summary: spot.Summarize(f.Spots)}
		if len(f.Truth) > 0 && matchRadius > 0 {
			m := spot.Match(f.Spots, f.Truth, matchRadius)
			ir.Match = &m
		}
		results = append(results, ir)
	}
	res["images"] = results
	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, res)
}

func (s *Server) newContext() (*ops.Context, *syncBuffer) {
	logBuf := &syncBuffer{}
	ctx := ops.NewContext(io.MultiWriter(logBuf, s.Log), s.Exec)
	if s.Config.Exec.Threads > 0 {
		ctx.MaxThreads = s.Config.Exec.Threads
	}
	return ctx, logBuf
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

type postExtractArgs struct {
	FilePatterns []string       `json:"filePatterns"`
	Extract      *ops.OpExtract `json:"extract"`
}

func (s *Server) postExtract(c *gin.Context) {
	args := postExtractArgs{Extract: ops.NewOpExtract(s.Config.Pipeline)}
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, err)
		return
	}
	ctx, logBuf := s.newContext()
	loaded, err := ops.NewOpLoadMany(args.FilePatterns).MakePromises(nil, ctx)
	if err != nil {
		badRequest(c, err)
		return
	}
	promises, err := args.Extract.MakePromises(loaded, ctx)
	if err != nil {
		badRequest(c, err)
		return
	}
	s.run(c, promises, ctx, logBuf, 0)
}

type postSynthArgs struct {
	Count   int            `json:"count"`
	Synth   synth.Config   `json:"synth"`
	Extract *ops.OpExtract `json:"extract"`
}

func (s *Server) postSynth(c *gin.Context) {
	args := postSynthArgs{Count: 1, Synth: s.Config.Synth, Extract: ops.NewOpExtract(s.Config.Pipeline)}
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, err)
		return
	}
	if args.Count < 1 || args.Count > 64 {
		badRequest(c, fmt.Errorf("count %d outside [1,64]", args.Count))
		return
	}
	if args.Synth.Width <= 0 || args.Synth.Height <= 0 || args.Synth.Width > 8192 || args.Synth.Height > 8192 {
		badRequest(c, fmt.Errorf("synthetic frame size %dx%d outside [1,8192]", args.Synth.Width, args.Synth.Height))
		return
	}
	ctx, logBuf := s.newContext()
	generated, err := ops.NewOpSynth(args.Count, args.Synth).MakePromises(nil, ctx)
	if err != nil {
		badRequest(c, err)
		return
	}
	promises, err := args.Extract.MakePromises(generated, ctx)
	if err != nil {
		badRequest(c, err)
		return
	}
	s.run(c, promises, ctx, logBuf, args.Extract.MatchRadius)
}

// Runs an arbitrary operator graph, given as JSON with a type field at the top level
func (s *Server) postOps(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	if !json.Valid(raw) {
		badRequest(c, fmt.Errorf("invalid JSON"))
		return
	}
	op, err := ops.UnmarshalOperator(raw)
	if err != nil {
		badRequest(c, err)
		return
	}
	ctx, logBuf := s.newContext()
	promises, err := op.MakePromises(nil, ctx)
	if err != nil {
		badRequest(c, err)
		return
	}
	s.run(c, promises, ctx, logBuf, 1.5)
}

