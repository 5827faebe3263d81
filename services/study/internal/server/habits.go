package server

import (
	"net/http"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/study/internal/app"
)

type titleRequest struct {
	Password string `json:"password"`
	Title    string `json:"title"`
}

type bulkRequest struct {
	Password string   `json:"password"`
	Habits   []string `json:"habits"`
	Items    []struct {
		Title string `json:"title"`
	} `json:"items"`
}

func (r bulkRequest) titles() []string {
	out := make([]string, 0, len(r.Habits)+len(r.Items))
	out = append(out, r.Habits...)
	for _, it := range r.Items {
		out = append(out, it.Title)
	}
	return out
}

func (s *Server) handleListToday(w http.ResponseWriter, r *http.Request) {
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
	out, err := s.app.ListToday(r.Context(), studyID, studyPassword(r, body.Password))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateBulk(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req bulkRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	out, err := s.app.CreateTodayBulk(r.Context(), studyID, studyPassword(r, req.Password), req.titles())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleAddSingle(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req titleRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	out, err := s.app.AddSingleToday(r.Context(), studyID, studyPassword(r, req.Password), req.Title)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	habitID, err := pathID(r, "habitId")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var body passwordBody
	if err := decodeJSON(w, r, &body, true); err != nil {
		writeAppError(w, r, err)
		return
	}
	out, err := s.app.ToggleDone(r.Context(), habitID, studyPassword(r, body.Password))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
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
	out, err := s.app.GetWeek(r.Context(), studyID, studyPassword(r, body.Password), r.URL.Query().Get("date"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	studyID, habitID, err := studyAndHabit(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req titleRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeAppError(w, r, err)
		return
	}
	out, err := s.app.RenameToday(r.Context(), studyID, studyPassword(r, req.Password), habitID, req.Title)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	studyID, habitID, err := studyAndHabit(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var body passwordBody
	if err := decodeJSON(w, r, &body, true); err != nil {
		writeAppError(w, r, err)
		return
	}
	out, err := s.app.DeleteFromToday(r.Context(), studyID, studyPassword(r, body.Password), habitID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func studyAndHabit(r *http.Request) (int64, int64, error) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		return 0, 0, err
	}
	habitID, err := app.ParseID(r.PathValue("habitId"), "habitId")
	if err != nil {
		return 0, 0, err
	}
	return studyID, habitID, nil
}
