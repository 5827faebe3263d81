package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/study/internal/app"
)

func (s *Server) handleListStudies(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	q := r.URL.Query()
	active, _ := strconv.ParseBool(q.Get("active"))
	out, err := s.app.ListStudies(r.Context(), app.ListQuery{
		Offset:      offset,
		Limit:       limit,
		Keyword:     q.Get("keyword"),
		PointOrder:  q.Get("pointOrder"),
		RecentOrder: q.Get("recentOrder"),
		ActiveOnly:  active,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleManageStudies(w http.ResponseWriter, r *http.Request) {
	out, err := s.app.ManageStudies(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateStudy(w http.ResponseWriter, r *http.Request) {
	var req app.CreateStudyInput
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	study, err := s.app.CreateStudy(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/studies/%d", study.ID))
	writeJSON(w, http.StatusCreated, study)
}

func (s *Server) handleStudyDetail(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out, err := s.app.GetStudyDetail(r.Context(), studyID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type updateStudyRequest struct {
	Password string `json:"password"`
	app.UpdateStudyInput
}

func (s *Server) handleUpdateStudy(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req updateStudyRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	study, err := s.app.UpdateStudy(r.Context(), studyID, studyPassword(r, req.Password), req.UpdateStudyInput)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, study)
}

func (s *Server) handleDeleteStudy(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var body passwordBody
	if err := decodeJSON(w, r, &body, true); err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := s.app.DeleteStudy(r.Context(), studyID, studyPassword(r, body.Password)); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxImageBytes+maxJSONBytes)
	if err := r.ParseMultipartForm(maxJSONBytes); err != nil {
		writeAppError(w, r, &app.Error{Kind: app.KindBadRequest, Message: "multipart form with an image field required"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	file, header, err := r.FormFile("image")
	if err != nil {
		writeAppError(w, r, &app.Error{Kind: app.KindBadRequest, Message: "image file required"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	var body io.Reader = file
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := io.ReadFull(file, sniff)
		contentType = http.DetectContentType(sniff[:n])
		body = io.MultiReader(bytes.NewReader(sniff[:n]), file)
	}
	out, err := s.app.UploadImage(r.Context(), studyID, studyPassword(r, r.FormValue("password")), body, header.Size, contentType)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type emojiRequest struct {
	ID    json.RawMessage `json:"id"`
	Count *int            `json:"count"`
}

// ref accepts a numeric emoji id, a numeric string id, or a symbol.
func (req emojiRequest) ref() (app.EmojiRef, error) {
	raw := bytes.TrimSpace(req.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return app.EmojiRef{}, &app.Error{Kind: app.KindBadRequest, Message: "emoji id required"}
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err == nil {
		return app.EmojiRef{ID: id}, nil
	}
	var sym string
	if err := json.Unmarshal(raw, &sym); err != nil {
		return app.EmojiRef{}, &app.Error{Kind: app.KindBadRequest, Message: "emoji id must be a number or a symbol"}
	}
	sym = strings.TrimSpace(sym)
	if n, err := strconv.ParseInt(sym, 10, 64); err == nil && n > 0 {
		return app.EmojiRef{ID: n}, nil
	}
	return app.EmojiRef{Symbol: sym}, nil
}

func (s *Server) handleEmoji(increment bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studyID, err := pathID(r, "studyId")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		var req emojiRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeAppError(w, r, err)
			return
		}
		ref, err := req.ref()
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		count := 1
		if req.Count != nil {
			count = *req.Count
		}
		if count < 1 {
			writeAppError(w, r, &app.Error{Kind: app.KindBadRequest, Message: "count must be at least 1"})
			return
		}
		adjust := s.app.DecrementEmoji
		if increment {
			adjust = s.app.IncrementEmoji
		}
		out, err := adjust(r.Context(), studyID, ref, count)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handlePointsSum(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out, err := s.app.PointsSum(r.Context(), studyID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type pointRequest struct {
	Password string `json:"password"`
	Point    int    `json:"point"`
}

func (s *Server) handleAddPoint(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req pointRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	out, err := s.app.AddPoint(r.Context(), studyID, studyPassword(r, req.Password), req.Point)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListFocus(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out, err := s.app.ListFocus(r.Context(), studyID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type focusRequest struct {
	MinuteData *int `json:"minuteData"`
	SecondData *int `json:"secondData"`
}

func (s *Server) handleUpdateFocus(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req focusRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	if req.MinuteData == nil || req.SecondData == nil {
		writeAppError(w, r, &app.Error{Kind: app.KindBadRequest, Message: "minuteData and secondData are required"})
		return
	}
	out, err := s.app.UpdateFocus(r.Context(), studyID, *req.MinuteData, *req.SecondData)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
