// Package api exposes the working document and the generation pipeline over
// HTTP and WebSocket.
package api

import (
	"fmt"
	"image/png"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/codesheet/codesheet-engine/internal/generator"
	"github.com/codesheet/codesheet-engine/internal/history"
	"github.com/codesheet/codesheet-engine/internal/sheet"
	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

// Server is the API server
type Server struct {
	router   *gin.Engine
	store    *history.Store
	planner  *generator.Planner
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new API server
func NewServer(store *history.Store, planner *generator.Planner, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	server := &Server{
		router:  router,
		store:   store,
		planner: planner,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Local single-user tool
			},
		},
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/state", s.handleGetState)

	s.router.POST("/blocks", s.handleAddBlock)
	s.router.PUT("/blocks/:id", s.handleUpdateBlock)
	s.router.DELETE("/blocks/:id", s.handleRemoveBlock)
	s.router.POST("/blocks/:id/duplicate", s.handleDuplicateBlock)
	s.router.POST("/blocks/:id/move", s.handleMoveBlock)

	s.router.PUT("/settings", s.handleUpdateSettings)

	s.router.POST("/undo", s.handleUndo)
	s.router.POST("/redo", s.handleRedo)
	s.router.POST("/reset", s.handleReset)

	s.router.POST("/generate", s.handleGenerate)
	s.router.GET("/results", s.handleGetResults)
	s.router.GET("/sheet", s.handleGetSheet)

	s.router.GET("/export/csv", s.handleExportCSV)
	s.router.GET("/export/json", s.handleExportJSON)
	s.router.POST("/import", s.handleImport)

	// WebSocket
	s.router.GET("/ws", s.handleWebSocket)

	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

func (s *Server) handleGetState(c *gin.Context) {
	c.JSON(200, gin.H{
		"blocks":     s.store.Blocks(),
		"settings":   s.store.Settings(),
		"canUndo":    s.store.CanUndo(),
		"canRedo":    s.store.CanRedo(),
		"generating": s.store.Generating(),
		"progress":   s.store.Progress(),
	})
}

func (s *Server) handleAddBlock(c *gin.Context) {
	block := s.store.AddBlock()
	c.JSON(200, gin.H{"block": block})
}

func (s *Server) handleUpdateBlock(c *gin.Context) {
	var patch sheetformat.Block
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	patch.ID = c.Param("id")
	applyBlockDefaults(&patch)
	if err := sheetformat.ValidateBlock(patch); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.UpdateBlock(patch.ID, patch); err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleRemoveBlock(c *gin.Context) {
	if err := s.store.RemoveBlock(c.Param("id")); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleDuplicateBlock(c *gin.Context) {
	block, err := s.store.DuplicateBlock(c.Param("id"))
	if err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"block": block})
}

func (s *Server) handleMoveBlock(c *gin.Context) {
	var req struct {
		Index int `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "index is required"})
		return
	}

	if err := s.store.MoveBlock(c.Param("id"), req.Index); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var settings sheetformat.GlobalSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if settings.Delimiter == "" {
		settings.Delimiter = sheetformat.DelimiterNewline
	}
	if err := sheetformat.ValidateSettings(settings); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	s.store.UpdateSettings(settings)
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleUndo(c *gin.Context) {
	c.JSON(200, gin.H{"applied": s.store.Undo(), "canUndo": s.store.CanUndo(), "canRedo": s.store.CanRedo()})
}

func (s *Server) handleRedo(c *gin.Context) {
	c.JSON(200, gin.H{"applied": s.store.Redo(), "canUndo": s.store.CanUndo(), "canRedo": s.store.CanRedo()})
}

func (s *Server) handleReset(c *gin.Context) {
	s.store.Reset()
	c.JSON(200, gin.H{"success": true})
}

// handleGenerate runs a generation pass. Small batches are encoded inline;
// batches at or above the delegation threshold return 202 and report
// progress and completion over the WebSocket.
func (s *Server) handleGenerate(c *gin.Context) {
	if s.store.Generating() {
		c.JSON(409, gin.H{"error": "a generation run is already in flight"})
		return
	}

	blocks := s.store.Blocks()
	settings := s.store.Settings()

	total, delegated := s.planner.WillDelegate(blocks, settings)
	if total == 0 {
		c.JSON(400, gin.H{"error": "nothing to generate: all blocks are empty"})
		return
	}

	if delegated {
		s.store.SetGenerating(true)
		go s.runDelegated(blocks, settings)
		c.JSON(202, gin.H{"delegated": true, "total": total})
		return
	}

	result, err := s.planner.Generate(blocks, settings, nil)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	s.store.SetResults(result)

	c.JSON(200, gin.H{
		"codes":  codeViews(result.Codes),
		"errors": errorViews(result.Errors),
	})
}

func (s *Server) runDelegated(blocks []sheetformat.Block, settings sheetformat.GlobalSettings) {
	result, err := s.planner.Generate(blocks, settings, func(p generator.Progress) {
		s.store.SetProgress(p)
		s.Broadcast(EventGenerationProgress, gin.H{"current": p.Current, "total": p.Total})
	})
	if err != nil {
		// Terminal failure for the run: no partial state is applied.
		s.log.Error("delegated generation failed", zap.Error(err))
		s.store.SetGenerating(false)
		s.Broadcast(EventGenerationError, gin.H{"error": err.Error()})
		return
	}

	s.store.SetResults(result)
	s.Broadcast(EventGenerationComplete, gin.H{
		"codes":  len(result.Codes),
		"errors": errorViews(result.Errors),
	})
}

func (s *Server) handleGetResults(c *gin.Context) {
	codes, errs := s.store.Results()
	c.JSON(200, gin.H{
		"codes":  codeViews(codes),
		"errors": errorViews(errs),
	})
}

func (s *Server) handleGetSheet(c *gin.Context) {
	codes, _ := s.store.Results()
	if len(codes) == 0 {
		c.JSON(404, gin.H{"error": "no generated codes; run /generate first"})
		return
	}

	settings := s.store.Settings()
	img, err := sheet.New(settings).Render(settings, codes)
	if err != nil {
		c.JSON(500, gin.H{"error": fmt.Sprintf("failed to render sheet: %v", err)})
		return
	}

	c.Header("Content-Type", "image/png")
	if err := png.Encode(c.Writer, img); err != nil {
		s.log.Warn("failed to stream sheet", zap.Error(err))
	}
}

func (s *Server) handleExportCSV(c *gin.Context) {
	data, err := sheetformat.ExportCSV(s.store.Document())
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="codesheet.csv"`)
	c.Data(200, "text/csv", data)
}

func (s *Server) handleExportJSON(c *gin.Context) {
	data, err := s.store.Document().ToJSON()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="codesheet.json"`)
	c.Data(200, "application/json", data)
}

// handleImport replaces the working blocks from an uploaded file. Detection
// picks columnar CSV, legacy row CSV, or JSON. A failed import leaves the
// current state untouched.
func (s *Server) handleImport(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(400, gin.H{"error": "failed to read upload"})
		return
	}

	doc, kind, err := sheetformat.Import(data)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.ImportDocument(doc, kind == sheetformat.ImportJSON); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{"success": true, "format": string(kind), "blocks": len(doc.Blocks)})
}

func applyBlockDefaults(b *sheetformat.Block) {
	if b.CodeType == "" {
		b.CodeType = sheetformat.CodeTypeQR
	}
	if b.QRErrorCorrection == "" {
		b.QRErrorCorrection = sheetformat.ErrorCorrectionM
	}
	if b.BarcodeFormat == "" {
		b.BarcodeFormat = sheetformat.FormatCODE128
	}
	if b.SizeOverride == "" {
		b.SizeOverride = sheetformat.SizeAuto
	}
}

func codeViews(codes []generator.GeneratedCode) []gin.H {
	views := make([]gin.H, len(codes))
	for i, code := range codes {
		views[i] = gin.H{
			"blockId":      code.BlockID,
			"blockIndex":   code.BlockIndex,
			"index":        code.Index,
			"text":         code.Text,
			"type":         code.CodeType,
			"resolvedSize": code.ResolvedSize,
			"subtitle":     code.Subtitle,
		}
	}
	return views
}

func errorViews(errs []generator.ValidationError) []gin.H {
	views := make([]gin.H, len(errs))
	for i, e := range errs {
		views[i] = gin.H{
			"blockId":    e.BlockID,
			"lineNumber": e.LineNumber,
			"text":       e.Text,
			"kind":       e.Kind,
			"message":    e.Message,
		}
	}
	return views
}

// Run starts the API server
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
