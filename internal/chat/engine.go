package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/roadwatch/roadwatch/internal/geo"
	"github.com/roadwatch/roadwatch/internal/models"
	"github.com/roadwatch/roadwatch/internal/report"
	"gorm.io/gorm"
)

// DivisionResolver maps a coordinate to its owning division. (nil, nil)
// means outside jurisdiction; an error means resolution was not possible.
type DivisionResolver interface {
	Resolve(lat, lng float64) (*models.Division, error)
}

// Submitter runs the submission pipeline for a completed draft.
type Submitter interface {
	Submit(ctx context.Context, d report.Draft, div *models.Division) (*report.Result, error)
}

// Engine is the conversation state machine. One inbound message maps to
// exactly one outbound reply and one state transition; submission side
// effects fire at most once per physical user action.
type Engine struct {
	db       *gorm.DB
	store    *SessionStore
	resolver DivisionResolver
	pipeline Submitter
	alerter  report.Alerter // optional
	joinForm func(token string) string
	locks    *userLocks
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	DB       *gorm.DB
	Store    *SessionStore
	Resolver DivisionResolver
	Pipeline Submitter
	Alerter  report.Alerter
	JoinForm func(token string) string // builds the team application link
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("chat: engine: db is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("chat: engine: session store is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("chat: engine: resolver is required")
	}
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("chat: engine: pipeline is required")
	}
	joinForm := opts.JoinForm
	if joinForm == nil {
		joinForm = func(token string) string { return "https://roadwatch.example/join?session=" + token }
	}
	return &Engine{
		db:       opts.DB,
		store:    opts.Store,
		resolver: opts.Resolver,
		pipeline: opts.Pipeline,
		alerter:  opts.Alerter,
		joinForm: joinForm,
		locks:    newUserLocks(),
	}, nil
}

// outcome is the result of one transition.
type outcome struct {
	reply    string
	reportID string
}

// HandleMessage processes one inbound message under the sender's lock and
// returns the single reply. Deliveries already recorded (gateway retries)
// replay the recorded reply without re-running side effects.
func (e *Engine) HandleMessage(ctx context.Context, msg InboundMessage) (OutboundMessage, error) {
	if msg.UserHandle == "" {
		return OutboundMessage{}, fmt.Errorf("chat: handle message: user handle is required")
	}

	unlock := e.locks.lock(msg.UserHandle)
	defer unlock()

	if msg.DeliveryID != "" {
		var prior models.ProcessedDelivery
		err := e.db.First(&prior, "delivery_id = ?", msg.DeliveryID).Error
		if err == nil {
			log.Printf("chat: replayed delivery %s for %s", msg.DeliveryID, msg.UserHandle)
			return OutboundMessage{UserHandle: msg.UserHandle, Text: prior.ReplyBody}, nil
		}
		if err != gorm.ErrRecordNotFound {
			return OutboundMessage{}, fmt.Errorf("chat: check delivery %s: %w", msg.DeliveryID, err)
		}
	}

	sess, err := e.store.FindOrCreate(msg.UserHandle, msg.Platform)
	if err != nil {
		return OutboundMessage{}, err
	}

	out := e.transition(ctx, sess, msg)

	if err := e.store.Save(sess); err != nil {
		return OutboundMessage{}, err
	}

	if msg.DeliveryID != "" {
		record := models.ProcessedDelivery{
			DeliveryID: msg.DeliveryID,
			UserHandle: msg.UserHandle,
			ReplyBody:  out.reply,
			ReportID:   out.reportID,
		}
		if err := e.db.Create(&record).Error; err != nil {
			// The reply still goes out; a lost record only risks one
			// duplicate reply on a retry, never a duplicate report,
			// because the session already left the capture state.
			log.Printf("chat: record delivery %s: %v", msg.DeliveryID, err)
		}
	}

	return OutboundMessage{UserHandle: msg.UserHandle, Text: out.reply}, nil
}

// transition applies the state machine to one message, mutating the
// session and returning the reply.
func (e *Engine) transition(ctx context.Context, sess *models.Session, msg InboundMessage) outcome {
	input := strings.ToLower(strings.TrimSpace(msg.Text))

	// Global keywords. "reset" always restarts; "menu" jumps home except
	// while the engine is waiting on report content, where it is treated
	// as content.
	if input == "reset" {
		resetSession(sess)
		return outcome{reply: text(sess.Language, msgWelcome)}
	}
	if input == "menu" && !capturing(sess.CurrentState) {
		sess.CurrentState = models.StateMenu
		return outcome{reply: menuFor(sess)}
	}

	switch sess.CurrentState {
	case models.StateLanguageSelect:
		switch input {
		case "1":
			sess.Language = LangEnglish
		case "2":
			sess.Language = LangMarathi
		default:
			return outcome{reply: text(sess.Language, msgWelcome)}
		}
		sess.CurrentState = models.StateNameCollection
		return outcome{reply: text(sess.Language, msgAskName)}

	case models.StateNameCollection:
		name := strings.TrimSpace(msg.Text)
		if name == "" {
			return outcome{reply: text(sess.Language, msgAskName)}
		}
		sess.DisplayName = name
		sess.CurrentState = models.StateMenu
		return outcome{reply: menuFor(sess)}

	case models.StateMenu:
		return e.fromMenu(sess, input)

	case models.StateAwaitingReport, models.StateAwaitingSuggestion:
		return e.capture(ctx, sess, msg)

	case models.StateAwaitingLocation:
		if !msg.HasLocation() {
			return outcome{reply: text(sess.Language, msgAskLocation)}
		}
		return e.completeReport(ctx, sess, draftFromSession(sess, msg))

	case models.StateJoinLinkSent:
		sess.CurrentState = models.StateMenu
		return outcome{reply: menuFor(sess)}

	default:
		// Unknown stored state (e.g. after a schema change): recover by
		// restarting the conversation.
		log.Printf("chat: session %s in unknown state %q, resetting", sess.UserHandle, sess.CurrentState)
		resetSession(sess)
		return outcome{reply: text(sess.Language, msgWelcome)}
	}
}

// fromMenu handles a menu selection.
func (e *Engine) fromMenu(sess *models.Session, input string) outcome {
	if reportType, ok := models.MenuReportTypes[input]; ok {
		sess.LastOption = input
		sess.CurrentState = models.StateAwaitingReport
		label := reportTypeLabel(sess.Language, reportType)
		return outcome{reply: text(sess.Language, msgCaptureInstructions, label)}
	}

	switch input {
	case "7":
		sess.LastOption = input
		sess.CurrentState = models.StateAwaitingSuggestion
		return outcome{reply: text(sess.Language, msgSuggestionPrompt)}
	case "8":
		token := uuid.New().String()
		app := models.TeamApplication{
			SessionToken: token,
			UserHandle:   sess.UserHandle,
			Name:         sess.DisplayName,
			Status:       models.ApplicationPending,
		}
		if err := e.db.Create(&app).Error; err != nil {
			log.Printf("chat: create application session for %s: %v", sess.UserHandle, err)
			return outcome{reply: text(sess.Language, msgUnavailable)}
		}
		sess.CurrentState = models.StateJoinLinkSent
		return outcome{reply: text(sess.Language, msgJoinLink, e.joinForm(token))}
	default:
		return outcome{reply: menuFor(sess)}
	}
}

// capture handles content sent while awaiting a report or suggestion.
// With a location attached, the report completes immediately; otherwise the
// content is stashed in the session draft and the engine asks for location.
func (e *Engine) capture(ctx context.Context, sess *models.Session, msg InboundMessage) outcome {
	hasContent := strings.TrimSpace(msg.Text) != "" || msg.MediaCount > 0

	if msg.HasLocation() {
		return e.completeReport(ctx, sess, draftFromMessage(sess, msg))
	}

	if !hasContent {
		label := reportTypeLabel(sess.Language, typeForOption(sess.LastOption, sess.CurrentState))
		return outcome{reply: text(sess.Language, msgCaptureInstructions, label)}
	}

	sess.DraftDescription = strings.TrimSpace(msg.Text)
	sess.DraftMediaURL = msg.MediaURL
	sess.DraftMediaType = msg.MediaContentType
	sess.CurrentState = models.StateAwaitingLocation
	return outcome{reply: text(sess.Language, msgAskLocation)}
}

// completeReport resolves the division and runs the submission pipeline.
// Both capture paths (inline location, stashed draft) converge here.
func (e *Engine) completeReport(ctx context.Context, sess *models.Session, d report.Draft) outcome {
	div, err := e.resolver.Resolve(d.Latitude, d.Longitude)
	if errors.Is(err, geo.ErrInvalidCoordinate) {
		// No side effects; the state is not advanced so the user can
		// share the location again.
		return outcome{reply: text(sess.Language, msgInvalidLocation)}
	}
	if err != nil {
		// Resolution-unavailable is not "outside jurisdiction": keep the
		// draft and state so a retry can succeed.
		log.Printf("chat: resolve division for %s: %v", sess.UserHandle, err)
		if e.alerter != nil {
			e.alerter.Alert(ctx, fmt.Sprintf("division resolution unavailable for %s: %v", sess.UserHandle, err))
		}
		return outcome{reply: text(sess.Language, msgUnavailable)}
	}
	if div == nil {
		clearDraft(sess)
		sess.CurrentState = models.StateMenu
		return outcome{reply: text(sess.Language, msgOutsideJurisdiction)}
	}

	res, err := e.pipeline.Submit(ctx, d, div)
	if err != nil {
		// Terminal for this submission: the user hears the true outcome.
		log.Printf("chat: submit report for %s: %v", sess.UserHandle, err)
		clearDraft(sess)
		sess.CurrentState = models.StateMenu
		return outcome{reply: text(sess.Language, msgSubmitFailed)}
	}

	clearDraft(sess)
	sess.CurrentState = models.StateMenu
	label := reportTypeLabel(sess.Language, res.Report.Type)
	return outcome{
		reply:    text(sess.Language, msgConfirmation, label, div.Name, shortRef(res.Report.ID)),
		reportID: res.Report.ID,
	}
}

// draftFromMessage builds a draft from an inline message carrying both
// content and location.
func draftFromMessage(sess *models.Session, msg InboundMessage) report.Draft {
	d := report.Draft{
		ReporterHandle: sess.UserHandle,
		ReporterName:   sess.DisplayName,
		Type:           typeForOption(sess.LastOption, sess.CurrentState),
		Description:    strings.TrimSpace(msg.Text),
		MediaURL:       msg.MediaURL,
		MediaType:      msg.MediaContentType,
		Latitude:       *msg.Latitude,
		Longitude:      *msg.Longitude,
		Address:        msg.Address,
	}
	return d
}

// draftFromSession builds a draft from stashed session fields plus the
// location message that completed them.
func draftFromSession(sess *models.Session, msg InboundMessage) report.Draft {
	return report.Draft{
		ReporterHandle: sess.UserHandle,
		ReporterName:   sess.DisplayName,
		Type:           typeForOption(sess.LastOption, sess.CurrentState),
		Description:    sess.DraftDescription,
		MediaURL:       sess.DraftMediaURL,
		MediaType:      sess.DraftMediaType,
		Latitude:       *msg.Latitude,
		Longitude:      *msg.Longitude,
		Address:        msg.Address,
	}
}

// typeForOption maps a remembered menu option to a report type.
func typeForOption(option, state string) string {
	if option == "7" || state == models.StateAwaitingSuggestion {
		return models.TypeSuggestion
	}
	if t, ok := models.MenuReportTypes[option]; ok {
		return t
	}
	return models.TypeGeneralReport
}

// capturing reports whether the state is one where free text is report
// content rather than a navigation keyword.
func capturing(state string) bool {
	switch state {
	case models.StateAwaitingReport, models.StateAwaitingSuggestion, models.StateAwaitingLocation:
		return true
	}
	return false
}

// shortRef truncates a report ID for user-facing messages.
func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
