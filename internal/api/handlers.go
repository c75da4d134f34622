package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/triage-edge-server/internal/domain"
)

type classifyRequest struct {
	Text string `json:"text" binding:"required"`
}

type triageRequest struct {
	Text string `json:"text" binding:"required"`
}

type protocolRequest struct {
	Observation string              `json:"observation" binding:"required"`
	Patient     *domain.PatientInfo `json:"patient,omitempty"`
}

type doseRequest struct {
	Drug       string              `json:"drug" binding:"required"`
	Indication string              `json:"indication"`
	Patient    *domain.PatientInfo `json:"patient,omitempty"`
}

type interactionsRequest struct {
	Drug    string              `json:"drug" binding:"required"`
	Patient *domain.PatientInfo `json:"patient" binding:"required"`
}

func (s *Server) handleClassify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.orchestrator.Classify(req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTriage(c *gin.Context) {
	var req triageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := s.orchestrator.Triage(c.Request.Context(), req.Text, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleProtocol(c *gin.Context) {
	var req protocolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := s.protocols.Match(req.Observation, req.Patient)
	if err != nil {
		writeError(c, err)
		return
	}
	if s.collector != nil {
		s.collector.ObserveProtocolMatch()
	}
	c.JSON(http.StatusOK, match)
}

func (s *Server) handleDose(c *gin.Context) {
	var req doseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.protocols.CalculateDose(req.Drug, req.Indication, req.Patient)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleInteractions(c *gin.Context) {
	var req interactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	warnings := s.protocols.CheckInteractions(req.Drug, req.Patient)
	c.JSON(http.StatusOK, gin.H{"warnings": warnings})
}

// writeError maps pipeline errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var perr *domain.PipelineError
	if errors.As(err, &perr) {
		switch perr.Code {
		case domain.ErrCodeInvalidInput:
			status = http.StatusBadRequest
		case domain.ErrCodeUnavailable:
			status = http.StatusServiceUnavailable
		case domain.ErrCodeTransferActive:
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": perr.Message, "code": perr.Code})
		return
	}
	if domain.IsUnavailable(err) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
