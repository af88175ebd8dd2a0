package handler

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/msomdec/revtrack/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// QuestionHandler serves the question endpoints. Every route requires an
// authenticated user and only ever touches that user's questions.
type QuestionHandler struct {
	questions *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questions *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questions: questions}
}

// HandleCreate logs a new question.
// POST /api/questions
func (h *QuestionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req createQuestionRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	q, err := h.questions.Create(r.Context(), user.ID, req.toInput())
	if err != nil {
		writeServiceError(w, err, "create question")
		return
	}

	writeJSON(w, http.StatusCreated, toQuestionDTO(q))
}

// HandleList returns the user's questions, soonest due first.
// GET /api/questions
func (h *QuestionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	questions, err := h.questions.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "list questions")
		return
	}

	writeJSON(w, http.StatusOK, toQuestionDTOs(questions))
}

// HandleGet returns a single question.
// GET /api/questions/{id}
func (h *QuestionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	q, err := h.questions.Get(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "get question")
		return
	}

	writeJSON(w, http.StatusOK, toQuestionDTO(q))
}

// HandleUpdate applies a partial edit.
// PATCH /api/questions/{id}
func (h *QuestionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req updateQuestionRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	q, err := h.questions.Update(r.Context(), user.ID, r.PathValue("id"), req.toInput())
	if err != nil {
		writeServiceError(w, err, "update question")
		return
	}

	writeJSON(w, http.StatusOK, toQuestionDTO(q))
}

// HandleRevise marks a question as revised.
// POST /api/questions/{id}/revise
func (h *QuestionHandler) HandleRevise(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	q, err := h.questions.MarkRevised(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "revise question")
		return
	}

	writeJSON(w, http.StatusOK, toQuestionDTO(q))
}

// HandleDelete removes a question. Unknown ids succeed too.
// DELETE /api/questions/{id}
func (h *QuestionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	if err := h.questions.Delete(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeServiceError(w, err, "delete question")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

// HandleStats returns counts by difficulty and topic.
// GET /api/questions/stats
func (h *QuestionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	stats, err := h.questions.Stats(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "question stats")
		return
	}

	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// HandleExport downloads the user's questions as a spreadsheet.
// GET /api/questions/export
func (h *QuestionHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var buf bytes.Buffer
	if err := h.questions.Export(r.Context(), user.ID, &buf); err != nil {
		writeServiceError(w, err, "export questions")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="questions.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("write export response", "error", err)
	}
}
