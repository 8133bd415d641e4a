package main

import (
	"context"
	"fmt"
	"strings"
)

// ExchangeState tracks where an exchange sits in the deliberation pipeline.
type ExchangeState string

const (
	StateIdle              ExchangeState = "idle"
	StateResolvingPersonas ExchangeState = "resolving_personas"
	StateStage1            ExchangeState = "stage1"
	StateStage2            ExchangeState = "stage2"
	StateStage25           ExchangeState = "stage2_5"
	StateStage3            ExchangeState = "stage3"
	StateComplete          ExchangeState = "complete"
	StateFailed            ExchangeState = "failed"
)

// FailReason is the stable reason code attached to a fatal exchange error.
type FailReason string

const (
	ReasonConfig         FailReason = "config_error"
	ReasonAllSeatsFailed FailReason = "all_seats_failed"
	ReasonChairmanFailed FailReason = "chairman_failed"
	ReasonCanceled       FailReason = "canceled"
)

// CouncilError is a fatal, exchange-level failure. Seat-level failures never
// surface as errors; they live inside ModelResults.
type CouncilError struct {
	Reason  FailReason
	Message string
}

func (e *CouncilError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// QueryFunc is the gateway contract the orchestrator depends on. It must
// return a non-nil result whose Err field carries any failure.
type QueryFunc func(ctx context.Context, model string, messages []ChatMessage, opts QueryOptions) *ModelResult

// Exchange is one user query moving through the full deliberation pipeline.
// The anonymizer, stage results, and label mapping it produces are owned by
// this exchange alone and never shared.
type Exchange struct {
	ID          string
	History     []ChatMessage
	Query       string
	Attachments []Attachment

	// Emitter receives ordered progress events; nil disables emission.
	Emitter *Emitter
	// TitleCh, when set, delivers a background-generated conversation title
	// to surface as a TitleComplete event before Complete.
	TitleCh <-chan string
	// Persist is the persistence hand-off. It is invoked with whatever stage
	// data exists both on completion and on fatal failure, so a debate
	// without a verdict is still retained.
	Persist func(res *ExchangeResult, runErr error)

	state ExchangeState
}

// State returns the exchange's current pipeline state.
func (ex *Exchange) State() ExchangeState {
	if ex.state == "" {
		return StateIdle
	}
	return ex.state
}

func (ex *Exchange) emit(ev Event) {
	if ex.Emitter != nil {
		ex.Emitter.Emit(ev)
	}
}

// ExchangeResult is the complete record of one deliberation. Stage1 holds
// every seat's original answer (error placeholders included, so its length
// always equals the council size). Stage25 holds the superseding answers the
// chairman saw: rebuttals where a seat revised, originals otherwise.
type ExchangeResult struct {
	Stage1   []ModelResult
	Stage2   []PeerReview
	Stage25  []ModelResult
	Stage3   ModelResult
	Metadata Metadata
}

// Council runs deliberations over a fixed set of members. Safe for
// concurrent exchanges; all mutable state lives in the Exchange.
type Council struct {
	Members       []CouncilMember
	Chairman      string
	TitleModel    string
	AllowedModels []string

	query   QueryFunc
	barrier *Barrier
	prompts *PromptSet
}

// NewCouncil assembles an orchestrator from its collaborators. barrier
// carries the injected global concurrency ceiling.
func NewCouncil(cfg CouncilConfig, query QueryFunc, barrier *Barrier) *Council {
	return &Council{
		Members:       cfg.Members,
		Chairman:      cfg.Chairman,
		TitleModel:    cfg.TitleModel,
		AllowedModels: cfg.AllowedModels,
		query:         query,
		barrier:       barrier,
		prompts:       DefaultPrompts(),
	}
}

// Validate rejects misconfigured councils synchronously, before any network
// call is made or any event emitted.
func (c *Council) Validate() error {
	if len(c.Members) == 0 {
		return &CouncilError{Reason: ReasonConfig, Message: "council has no members"}
	}
	if c.Chairman == "" {
		return &CouncilError{Reason: ReasonConfig, Message: "no chairman configured"}
	}
	if len(c.AllowedModels) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(c.AllowedModels))
	for _, id := range c.AllowedModels {
		allowed[id] = true
	}
	for _, m := range c.Members {
		if !allowed[m.Model] {
			return &CouncilError{Reason: ReasonConfig, Message: fmt.Sprintf("unknown council model %q", m.Model)}
		}
	}
	if !allowed[c.Chairman] {
		return &CouncilError{Reason: ReasonConfig, Message: fmt.Sprintf("unknown chairman model %q", c.Chairman)}
	}
	return nil
}

// RunExchange drives one query through Stage 1 (independent answers),
// Stage 2 (blind peer review), Stage 2.5 (rebuttals), and Stage 3 (chairman
// synthesis). On a fatal error it returns whatever stage data exists so the
// caller can still persist the partial debate.
//
// Cancellation via ctx takes effect at stage boundaries; calls already in
// flight are allowed to finish rather than wasting billed tokens.
func (c *Council) RunExchange(ctx context.Context, ex *Exchange) (*ExchangeResult, error) {
	res := &ExchangeResult{}

	fail := func(reason FailReason, msg string) (*ExchangeResult, error) {
		ex.state = StateFailed
		err := &CouncilError{Reason: reason, Message: msg}
		if ex.Persist != nil {
			ex.Persist(res, err)
		}
		ex.emit(Event{Type: EventError, Message: err.Error()})
		return res, err
	}

	if err := c.Validate(); err != nil {
		ce := err.(*CouncilError)
		return fail(ce.Reason, ce.Message)
	}

	// In-flight calls run under a context detached from caller cancellation;
	// the caller's ctx is honored between stages instead.
	callCtx := context.WithoutCancel(ctx)

	ex.state = StateResolvingPersonas
	ex.emit(Event{Type: EventResolvingPersonas})
	userContent := queryWithAttachments(ex.Query, ex.Attachments)

	// Stage 1: every member answers independently.
	ex.state = StateStage1
	ex.emit(Event{Type: EventStage1Start})

	models := make([]string, len(c.Members))
	for i, m := range c.Members {
		models[i] = m.Model
	}
	stage1 := c.barrier.FanOut(callCtx, models, func(tctx context.Context, seat int, model string) *ModelResult {
		member := c.Members[seat]
		msgs := withPersona(member, append(append([]ChatMessage{}, ex.History...), ChatMessage{Role: "user", Content: userContent}))
		r := c.query(tctx, model, msgs, QueryOptions{})
		r.Persona = member.Persona
		return r
	})
	res.Stage1 = deref(stage1)
	ex.emit(Event{Type: EventStage1Complete, Data: res.Stage1})

	if ctx.Err() != nil {
		return fail(ReasonCanceled, ctx.Err().Error())
	}

	// Failed seats are excluded from peer review: there is nothing to
	// critique and nothing to critique with.
	var survivors []ModelResult
	for _, r := range res.Stage1 {
		if !r.Failed() {
			survivors = append(survivors, r)
		}
	}
	if len(survivors) == 0 {
		return fail(ReasonAllSeatsFailed, "all council models failed to respond")
	}

	survivorModels := make([]string, len(survivors))
	responseByModel := make(map[string]string, len(survivors))
	for i, r := range survivors {
		survivorModels[i] = r.Model
		responseByModel[r.Model] = r.Response
	}
	anon := NewAnonymizer(survivorModels)

	// Stage 2: blind peer review, skipped when there are no peers.
	if len(survivors) > 1 {
		ex.state = StateStage2
		ex.emit(Event{Type: EventStage2Start})

		var bundle strings.Builder
		for _, label := range anon.Labels() {
			fmt.Fprintf(&bundle, "%s:\n%s\n\n", label, responseByModel[anon.Reveal(label)])
		}
		reviewPrompt := c.prompts.Review(ex.Query, bundle.String())

		reviewResults := c.barrier.FanOut(callCtx, survivorModels, func(tctx context.Context, seat int, model string) *ModelResult {
			return c.query(tctx, model, []ChatMessage{{Role: "user", Content: reviewPrompt}}, QueryOptions{})
		})
		for _, r := range reviewResults {
			parsed := ParseRankingFromText(r.Response)
			if !r.Failed() && len(parsed) < anon.Len() {
				// The regexes missed at least one answer; let a cheap model
				// recover the ordering before this reviewer abstains.
				parsed = c.extractRanking(callCtx, r.Response, anon.Labels(), parsed)
			}
			res.Stage2 = append(res.Stage2, PeerReview{
				Model:            r.Model,
				Ranking:          r.Response,
				Thinking:         r.Thinking,
				IsReasoningModel: r.IsReasoningModel,
				ParsedRanking:    parsed,
				Usage:            r.Usage,
				Cost:             r.Cost,
				Err:              r.Err,
			})
		}
	}

	aggregate := AggregateRankings(res.Stage2, anon, survivorModels)
	metadata := Metadata{
		LabelToModel:      anon.LabelToModel(),
		AggregateRankings: aggregate,
	}
	if len(survivors) > 1 {
		ex.emit(Event{Type: EventStage2Complete, Data: res.Stage2, Metadata: &metadata})
	}

	if ctx.Err() != nil {
		return fail(ReasonCanceled, ctx.Err().Error())
	}

	// Stage 2.5: members whose answer was critiqued may revise it. Revised
	// answers supersede the originals in the chairman transcript; the
	// originals stay in Stage1 for the record.
	res.Stage25 = append([]ModelResult{}, res.Stage1...)
	c.runRebuttals(callCtx, ex, res, anon)

	if ctx.Err() != nil {
		return fail(ReasonCanceled, ctx.Err().Error())
	}

	// Stage 3: single chairman call over the full transcript.
	ex.state = StateStage3
	ex.emit(Event{Type: EventStage3Start})

	chairmanPrompt := c.prompts.Chairman(ex.Query,
		transcriptAnswers(res.Stage25),
		transcriptRanking(aggregate),
		transcriptReviews(res.Stage2))
	chairman := c.query(callCtx, c.Chairman, []ChatMessage{{Role: "user", Content: chairmanPrompt}}, QueryOptions{})
	res.Stage3 = *chairman
	res.Metadata = c.totalize(metadata, res)

	if chairman.Failed() {
		// Intermediate stage data stays on res: the caller persists the
		// debate even though there is no verdict.
		return fail(ReasonChairmanFailed, fmt.Sprintf("chairman model %s failed: %s", c.Chairman, chairman.Err))
	}
	ex.emit(Event{Type: EventStage3Complete, Data: res.Stage3})

	// Hand the completed exchange to the persistence collaborator before
	// announcing completion.
	if ex.Persist != nil {
		ex.Persist(res, nil)
	}

	if ex.TitleCh != nil {
		if title, ok := <-ex.TitleCh; ok && title != "" {
			ex.emit(Event{Type: EventTitleComplete, Data: map[string]string{"title": title}})
		}
	}

	ex.state = StateComplete
	ex.emit(Event{Type: EventComplete})
	return res, nil
}

// extractRanking asks the fast title model to pull the label ordering out of
// a review the regex parser could not fully read. The regex result stands
// whenever extraction fails or does no better.
func (c *Council) extractRanking(ctx context.Context, rankingText string, labels, parsed []string) []string {
	prompt := c.prompts.ExtractRanking(rankingText, labels)
	r := c.query(ctx, c.TitleModel, []ChatMessage{{Role: "user", Content: prompt}},
		QueryOptions{Timeout: RankingExtractTimeout})
	if r.Failed() {
		return parsed
	}
	extracted := labelsInOrder(r.Response, labels)
	if len(extracted) >= len(parsed) {
		return extracted
	}
	return parsed
}

// runRebuttals fans the rebuttal round out to every critiqued survivor and
// splices successful revisions into res.Stage25.
func (c *Council) runRebuttals(callCtx context.Context, ex *Exchange, res *ExchangeResult, anon *Anonymizer) {
	critiques := make(map[string][]string)
	for _, review := range res.Stage2 {
		if review.Err != "" {
			continue
		}
		// The full review text covers every label; each target gets the
		// whole critique and finds the section about itself.
		for _, model := range anon.LabelToModel() {
			if model != review.Model {
				critiques[model] = append(critiques[model], fmt.Sprintf("Critique from Peer (%s):\n%s", review.Model, review.Ranking))
			}
		}
	}

	var participants []string
	seatByModel := make(map[string]int)
	for i, r := range res.Stage1 {
		seatByModel[r.Model] = i
		if !r.Failed() && len(critiques[r.Model]) > 0 {
			participants = append(participants, r.Model)
		}
	}
	if len(participants) == 0 {
		return
	}

	ex.state = StateStage25
	ex.emit(Event{Type: EventStage25Start})

	rebuttals := c.barrier.FanOut(callCtx, participants, func(tctx context.Context, seat int, model string) *ModelResult {
		original := res.Stage1[seatByModel[model]]
		prompt := c.prompts.Rebuttal(ex.Query, anon.Hide(model), original.Response,
			strings.Join(critiques[model], "\n\n---\n\n"))
		msgs := withPersona(c.Members[seatByModel[model]], []ChatMessage{{Role: "user", Content: prompt}})
		return c.query(tctx, model, msgs, QueryOptions{})
	})

	for _, r := range rebuttals {
		if r.Failed() {
			continue // seat keeps its original answer
		}
		seat := seatByModel[r.Model]
		original := res.Stage1[seat]
		revised := *r
		revised.IsRebuttal = true
		revised.Persona = original.Persona
		revised.Usage.Add(original.Usage)
		revised.Cost += original.Cost
		res.Stage25[seat] = revised
	}
}

// totalize sums usage and cost over every gateway call of the exchange.
// Stage25 entries already fold their Stage-1 usage in, so the rollup is
// Stage25 + reviews + chairman.
func (c *Council) totalize(metadata Metadata, res *ExchangeResult) Metadata {
	for _, r := range res.Stage25 {
		metadata.TotalCost += r.Cost
		metadata.TotalTokens.Add(r.Usage)
	}
	for _, review := range res.Stage2 {
		metadata.TotalCost += review.Cost
		metadata.TotalTokens.Add(review.Usage)
	}
	metadata.TotalCost += res.Stage3.Cost
	metadata.TotalTokens.Add(res.Stage3.Usage)
	return metadata
}

// GenerateTitle produces a short conversation title with the fast title
// model. Falls back to a generic title on failure.
func (c *Council) GenerateTitle(ctx context.Context, userQuery string) string {
	r := c.query(ctx, c.TitleModel, []ChatMessage{{Role: "user", Content: c.prompts.Title(userQuery)}},
		QueryOptions{Timeout: TitleGenTimeout})
	if r.Failed() {
		return "New Conversation"
	}

	title := strings.TrimSpace(r.Response)
	title = strings.Trim(title, "\"'")
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	if title == "" {
		return "New Conversation"
	}
	return title
}

// withPersona injects a member's persona. Models that reject system messages
// get the persona folded into the first user message instead.
func withPersona(member CouncilMember, msgs []ChatMessage) []ChatMessage {
	if member.Persona == "" {
		return msgs
	}
	if SupportsSystemMessage(member.Model) {
		return append([]ChatMessage{{Role: "system", Content: member.Persona}}, msgs...)
	}
	out := append([]ChatMessage{}, msgs...)
	for i, m := range out {
		if m.Role == "user" {
			out[i].Content = member.Persona + "\n\n" + m.Content
			break
		}
	}
	return out
}

// queryWithAttachments appends attachment blocks to the user query.
func queryWithAttachments(query string, attachments []Attachment) string {
	if len(attachments) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString(query)
	for _, att := range attachments {
		fmt.Fprintf(&b, "\n\n--- Attachment: %s ---\n%s", att.Name, att.Content)
	}
	return b.String()
}

func deref(results []*ModelResult) []ModelResult {
	out := make([]ModelResult, len(results))
	for i, r := range results {
		out[i] = *r
	}
	return out
}

// transcriptAnswers renders the superseding answers for the chairman. Failed
// seats are noted but contribute no text.
func transcriptAnswers(answers []ModelResult) string {
	var b strings.Builder
	for _, r := range answers {
		if r.Failed() {
			fmt.Fprintf(&b, "Model: %s\n(no answer: this model failed to respond)\n\n", r.Model)
			continue
		}
		fmt.Fprintf(&b, "Model: %s", r.Model)
		if r.IsRebuttal {
			b.WriteString(" (revised after peer review)")
		}
		b.WriteString("\n")
		if r.Thinking != "" {
			fmt.Fprintf(&b, "Thinking Process:\n%s\n\n", r.Thinking)
		}
		fmt.Fprintf(&b, "Response: %s\n\n", r.Response)
	}
	return b.String()
}

// transcriptRanking renders the de-anonymized aggregate ranking.
func transcriptRanking(aggregate []AggregateRanking) string {
	var b strings.Builder
	for i, agg := range aggregate {
		if agg.RankingsCount == 0 {
			fmt.Fprintf(&b, "%d. %s (no peer votes)\n", i+1, agg.Model)
			continue
		}
		fmt.Fprintf(&b, "%d. %s (average rank %.2f over %d votes)\n", i+1, agg.Model, agg.AverageRank, agg.RankingsCount)
	}
	return b.String()
}

// transcriptReviews renders the peer review texts.
func transcriptReviews(reviews []PeerReview) string {
	var b strings.Builder
	for _, review := range reviews {
		if review.Err != "" {
			continue
		}
		fmt.Fprintf(&b, "Model: %s\nRanking: %s\n\n", review.Model, review.Ranking)
	}
	return b.String()
}
