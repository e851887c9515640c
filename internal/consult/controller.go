package consult

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sivia/sivia/pkg/clinical"
)

// State of a consultation.
type State int

const (
	Idle State = iota
	Clarifying
	Generating
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Clarifying:
		return "clarifying"
	case Generating:
		return "generating"
	case Done:
		return "done"
	}
	return "unknown"
}

var (
	ErrBusy            = errors.New("consulta em andamento")
	ErrPatientRequired = errors.New("Dados do paciente são obrigatórios")
	ErrNoAnswers       = errors.New("responda ao menos uma pergunta")
)

// StateError is an operation attempted in the wrong state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return e.Op + ": not allowed while " + e.State.String()
}

// Relay is what the controller needs from the server. *Client satisfies it.
type Relay interface {
	Clarify(ctx context.Context, patientData string) (*clinical.Clarification, error)
	Generate(ctx context.Context, req GenerateRequest) (*clinical.Suggestion, error)
	ExtractDocument(ctx context.Context, doc Document) (*clinical.ExtractedDocument, error)
}

// Controller drives one consultation at a time:
// Idle → Clarifying → Generating → Done, with Idle → Generating when the
// case needs no clarification. Only one relay call runs at a time; a
// failed call leaves the controller where it was with its inputs intact.
type Controller struct {
	relay Relay
	mode  string

	mu        sync.Mutex
	busy      bool
	epoch     int
	state     State
	patient   clinical.PatientCase
	questions []clinical.ClarificationAnswer
	result    *clinical.Suggestion
}

func NewController(relay Relay) *Controller {
	return &Controller{relay: relay, mode: clinical.ModeNormal}
}

// SetMode selects normal, emergency or occupational generation.
func (c *Controller) SetMode(mode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Case returns the patient case last submitted.
func (c *Controller) Case() clinical.PatientCase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.patient
}

// Questions returns the pending follow-up questions with the answers
// recorded so far.
func (c *Controller) Questions() []clinical.ClarificationAnswer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]clinical.ClarificationAnswer(nil), c.questions...)
}

// Result is the suggestion of a Done consultation.
func (c *Controller) Result() *clinical.Suggestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Start submits a case. When the server asks for clarification the
// controller moves to Clarifying; otherwise it generates straight away.
func (c *Controller) Start(ctx context.Context, pc clinical.PatientCase) error {
	if strings.TrimSpace(pc.Anamnese) == "" {
		return ErrPatientRequired
	}
	epoch, err := c.begin("start", Idle)
	if err != nil {
		return err
	}
	defer c.end()

	c.mu.Lock()
	c.patient = pc
	c.mu.Unlock()

	verdict, err := c.relay.Clarify(ctx, pc.Narrative())
	if err != nil {
		return err
	}

	if verdict.NeedsClarification && len(verdict.Questions) > 0 {
		questions := make([]clinical.ClarificationAnswer, len(verdict.Questions))
		for i, q := range verdict.Questions {
			questions[i] = clinical.ClarificationAnswer{Question: q}
		}
		c.mu.Lock()
		if c.epoch == epoch {
			c.questions = questions
			c.state = Clarifying
		}
		c.mu.Unlock()
		return nil
	}
	return c.generate(ctx, epoch, Idle, nil)
}

// ContinueWithAnswers records the answers, one per question in order, and
// generates. Blank answers are dropped; with none left nothing is sent.
func (c *Controller) ContinueWithAnswers(ctx context.Context, answers []string) error {
	epoch, err := c.begin("continue", Clarifying)
	if err != nil {
		return err
	}
	defer c.end()

	c.mu.Lock()
	for i := range c.questions {
		if i < len(answers) {
			c.questions[i].Answer = answers[i]
		}
	}
	answered := clinical.Answered(c.questions)
	c.mu.Unlock()

	if len(answered) == 0 {
		return ErrNoAnswers
	}
	return c.generate(ctx, epoch, Clarifying, answered)
}

// Skip generates without answering the pending questions.
func (c *Controller) Skip(ctx context.Context) error {
	epoch, err := c.begin("skip", Clarifying)
	if err != nil {
		return err
	}
	defer c.end()
	return c.generate(ctx, epoch, Clarifying, nil)
}

// Reset returns to Idle from any state. A call still in flight finishes but
// its outcome is discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.state = Idle
	c.patient = clinical.PatientCase{}
	c.questions = nil
	c.result = nil
}

// Prefill sends a document to the parser and folds what comes back into a
// case built from the reception form. Only allowed while Idle.
func (c *Controller) Prefill(ctx context.Context, doc Document, form clinical.Reception) (clinical.PatientCase, *clinical.ExtractedDocument, error) {
	if err := ValidateUpload(doc.Name, doc.Type, int64(len(doc.Data))); err != nil {
		return clinical.PatientCase{}, nil, err
	}
	if _, err := c.begin("prefill", Idle); err != nil {
		return clinical.PatientCase{}, nil, err
	}
	defer c.end()

	extracted, err := c.relay.ExtractDocument(ctx, doc)
	if err != nil {
		return clinical.PatientCase{}, nil, err
	}
	return form.Case(extracted), extracted, nil
}

func (c *Controller) generate(ctx context.Context, epoch int, from State, answers []clinical.ClarificationAnswer) error {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	c.state = Generating
	patient := c.patient
	mode := c.mode
	c.mu.Unlock()

	out, err := c.relay.Generate(ctx, GenerateRequest{
		PatientData: patient.Narrative(),
		Mode:        mode,
		Answers:     answers,
		Patient:     &patient,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return err
	}
	if err != nil {
		c.state = from
		return err
	}
	c.result = out
	c.state = Done
	return nil
}

func (c *Controller) begin(op string, want State) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return 0, ErrBusy
	}
	if c.state != want {
		return 0, &StateError{Op: op, State: c.state}
	}
	c.busy = true
	return c.epoch, nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}
