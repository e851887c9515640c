package suggestion

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sivia/sivia/internal/platform/auth"
	"github.com/sivia/sivia/internal/platform/gateway"
	"github.com/sivia/sivia/pkg/clinical"
)

const (
	MsgPatientDataRequired = "Dados do paciente são obrigatórios"
	msgProcessingFailed    = "Erro ao processar com IA"
	msgEmptyResponse       = "Resposta vazia da IA"
	msgInvalidBody         = "Corpo da requisição inválido"
	msgInvalidPhase        = "Fase inválida"
)

// Request is the body of POST /clinical-suggestions.
type Request struct {
	PatientData          string                         `json:"patientData"`
	Phase                string                         `json:"phase,omitempty"`
	Mode                 string                         `json:"mode,omitempty"`
	ClarificationAnswers []clinical.ClarificationAnswer `json:"clarificationAnswers,omitempty"`
	Patient              *clinical.PatientCase          `json:"patient,omitempty"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the relay. Extra middleware (the shared AI rate
// limiter) wraps only this route.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	api.POST("/clinical-suggestions", h.Suggest, mw...)
}

// Suggest dispatches on phase: "analyze" returns the clarification verdict,
// "generate" or an empty phase returns the clinical suggestion.
func (h *Handler) Suggest(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBody).SetInternal(err)
	}

	ctx := c.Request().Context()
	switch req.Phase {
	case clinical.PhaseAnalyze:
		out, err := h.svc.Clarify(ctx, req.PatientData)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, out)

	case clinical.PhaseGenerate, "":
		out, err := h.svc.Generate(ctx, GenerateInput{
			UserID:      auth.UserIDFromContext(ctx),
			PatientData: req.PatientData,
			Mode:        req.Mode,
			Answers:     req.ClarificationAnswers,
			Patient:     req.Patient,
		})
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, out)

	default:
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidPhase+": "+req.Phase)
	}
}

func mapError(err error) error {
	if errors.Is(err, ErrPatientDataRequired) {
		return echo.NewHTTPError(http.StatusBadRequest, MsgPatientDataRequired)
	}
	return gateway.HTTPError(err, msgProcessingFailed, msgEmptyResponse)
}
