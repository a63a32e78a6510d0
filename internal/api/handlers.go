package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/chat"
	"github.com/spigell/resume-screener/internal/vectorstore"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Resume Screening API is running",
	})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	ResumeID  string `json:"resumeId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	resp, err := s.chat.Submit(r.Context(), chat.Request{
		Message:   req.Message,
		SessionID: req.SessionID,
		ResumeRef: req.ResumeID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ok(w, map[string]any{
		"response":    resp.Text,
		"context":     resp.Context,
		"sessionInfo": resp.Session,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.chat.History(r.PathValue("sessionId"))
	if history.Session == nil {
		ok(w, map[string]any{
			"history": history.Messages,
			"message": "No session found",
		})
		return
	}

	ok(w, map[string]any{
		"history":     history.Messages,
		"sessionInfo": history.Session,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.chat.Sessions()
	ok(w, map[string]any{
		"sessions":      sessions,
		"totalSessions": len(sessions),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	message := "Session not found"
	if s.chat.DeleteSession(r.PathValue("sessionId")) {
		message = "Session deleted"
	}
	ok(w, map[string]any{"message": message})
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	sess, err := s.chat.RenameSession(r.PathValue("sessionId"), req.Title)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ok(w, map[string]any{
		"message": "Title updated",
		"session": map[string]string{"id": sess.ID, "title": sess.Title},
	})
}

type scoreRequest struct {
	ResumeText         string `json:"resumeText"`
	JobDescriptionText string `json:"jobDescriptionText"`
	ResumeID           string `json:"resumeId"`
	JobDescriptionID   string `json:"jobDescriptionId"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	// Stored documents can be scored by id alone.
	if strings.TrimSpace(req.ResumeText) == "" && req.ResumeID != "" && s.documents != nil {
		if doc, err := s.documents.Get(r.Context(), vectorstore.DocTypeResume, req.ResumeID); err == nil {
			req.ResumeText = doc.Text
		}
	}
	if strings.TrimSpace(req.JobDescriptionText) == "" && req.JobDescriptionID != "" && s.documents != nil {
		if doc, err := s.documents.Get(r.Context(), vectorstore.DocTypeJobDescription, req.JobDescriptionID); err == nil {
			req.JobDescriptionText = doc.Text
		}
	}

	if strings.TrimSpace(req.ResumeText) == "" || strings.TrimSpace(req.JobDescriptionText) == "" {
		s.fail(w, r, apperror.New(apperror.KindClient, "Both resumeText and jobDescriptionText are required"))
		return
	}

	score := s.scorer.Score(r.Context(), req.ResumeText, req.JobDescriptionText, req.ResumeID, req.JobDescriptionID)
	ok(w, map[string]any{"matchScore": score})
}

func docTypeFromPath(r *http.Request) (vectorstore.DocType, error) {
	docType, err := vectorstore.ParseDocType(r.PathValue("docType"))
	if err != nil {
		return "", apperror.Wrap(apperror.KindNotFound, "Not Found", err)
	}
	return docType, nil
}

func docLabel(docType vectorstore.DocType) string {
	if docType == vectorstore.DocTypeJobDescription {
		return "Job description"
	}
	return "Resume"
}

// handleUpload accepts a multipart form with a "file" field, or a JSON body
// {"fileName": ..., "text": ...}.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	docType, err := docTypeFromPath(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	fileName, content, err := readUpload(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	doc, err := s.documents.Upload(r.Context(), docType, fileName, content)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ok(w, map[string]any{
		"id":      doc.ID,
		"message": docLabel(docType) + " uploaded successfully",
		"text":    doc.Text,
	})
}

func readUpload(r *http.Request) (string, []byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, apperror.New(apperror.KindClient, "No file uploaded")
		}
		if err != nil {
			return "", nil, apperror.Wrap(apperror.KindClient, "Invalid upload", err)
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return "", nil, apperror.Wrap(apperror.KindClient, "Invalid upload", err)
		}
		return header.Filename, content, nil
	}

	var req struct {
		FileName string `json:"fileName"`
		Text     string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return "", nil, err
	}
	return req.FileName, []byte(req.Text), nil
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docType, err := docTypeFromPath(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	doc, err := s.documents.Get(r.Context(), docType, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ok(w, map[string]any{
		"id":         doc.ID,
		"text":       doc.Text,
		"fileName":   doc.FileName,
		"uploadedAt": doc.UploadedAt,
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docType, err := docTypeFromPath(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.documents.Delete(r.Context(), docType, r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}

	ok(w, map[string]any{"message": docLabel(docType) + " deleted successfully"})
}

func (s *Server) handleDeleteAllDocuments(w http.ResponseWriter, r *http.Request) {
	docType, err := docTypeFromPath(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.documents.DeleteAll(r.Context(), docType); err != nil {
		s.fail(w, r, err)
		return
	}

	label := "All resumes"
	if docType == vectorstore.DocTypeJobDescription {
		label = "All job descriptions"
	}
	ok(w, map[string]any{"message": label + " deleted successfully"})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Purge(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, map[string]any{"message": "All data deleted successfully"})
}
