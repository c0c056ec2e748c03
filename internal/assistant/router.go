package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Vovarama1992/notebot/internal/ai"
	"github.com/Vovarama1992/notebot/internal/notes"
)

var ErrEmptyConversation = errors.New("assistant: empty conversation id")

// errFallThrough sends the message down the plain chat path.
var errFallThrough = errors.New("fall through to chat")

type Options struct {
	SystemPrompt      string
	ClassifierTimeout time.Duration
	GeneratorTimeout  time.Duration
	RecentNotesLimit  int
}

// Router decides per message whether to run a command, ask for confirmation
// or just chat. Conversations are independent; messages of one conversation
// are handled one at a time.
type Router struct {
	store      NoteStore
	classifier Classifier
	generator  Generator
	sessions   *SessionStore
	opts       Options
	log        *zap.Logger
}

func NewRouter(store NoteStore, classifier Classifier, generator Generator, opts Options, log *zap.Logger) *Router {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.RecentNotesLimit <= 0 {
		opts.RecentNotesLimit = notes.DefaultRecentLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		store:      store,
		classifier: classifier,
		generator:  generator,
		sessions:   NewSessionStore(opts.SystemPrompt),
		opts:       opts,
		log:        log,
	}
}

// Handle processes one inbound message. The error is non-nil only when the
// conversation id is empty or ctx ends while waiting for an earlier message
// of the same conversation.
func (r *Router) Handle(ctx context.Context, conversationID, text string) (Reply, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return Reply{}, ErrEmptyConversation
	}
	text = strings.TrimSpace(text)

	sess, err := r.sessions.Acquire(ctx, conversationID)
	if err != nil {
		return Reply{}, fmt.Errorf("assistant: wait for conversation %s: %w", conversationID, err)
	}
	defer sess.turn.Release(1)
	sess.touch(r.sessions.now())

	log := r.log.With(zap.String("conversation", conversationID))
	log.Debug("message received", zap.String("text", text))

	gen, pending := sess.state()
	var reply Reply
	switch {
	case pending != nil:
		reply = r.resolvePending(ctx, sess, gen, text, log)
	case text == "":
		reply = Reply{Text: msgEmptyInput}
	default:
		reply = r.route(ctx, sess, gen, text, log)
	}

	if !reply.Discarded {
		sess.recordResult(gen, reply.Text)
	}
	return reply, nil
}

func (r *Router) route(ctx context.Context, sess *Session, gen uint64, text string, log *zap.Logger) Reply {
	kind := r.classify(ctx, text, log)
	if kind == KindNone {
		return r.chat(ctx, sess, gen, text, log)
	}

	log.Info("command matched", zap.Stringer("command", kind))
	reply, err := r.dispatch(ctx, sess, gen, kind, text, log)
	if errors.Is(err, errFallThrough) {
		return r.chat(ctx, sess, gen, text, log)
	}
	reply.Command = kind
	return reply
}

func (r *Router) classify(ctx context.Context, text string, log *zap.Logger) Kind {
	cctx, cancel := withTimeout(ctx, r.opts.ClassifierTimeout)
	defer cancel()

	name, err := r.classifier.Classify(cctx, text, Catalog())
	if err != nil {
		log.Warn("classification failed, falling back to chat", zap.Error(err))
		return KindNone
	}
	kind, ok := parseKind(name)
	if !ok {
		if name != ai.IntentNone {
			log.Debug("unknown intent", zap.String("intent", name))
		}
		return KindNone
	}
	return kind
}

func (r *Router) dispatch(ctx context.Context, sess *Session, gen uint64, kind Kind, text string, log *zap.Logger) (Reply, error) {
	if kind.Destructive() {
		return r.requestConfirmation(ctx, sess, gen, kind, text, log)
	}

	switch kind {
	case KindStart:
		return restart(sess, msgGreeting), nil
	case KindReset:
		return restart(sess, msgReset), nil
	case KindHelp:
		return Reply{Text: helpText}, nil
	case KindSave:
		return r.saveNote(ctx, sess, text, log)
	case KindNotes:
		return r.showNotes(ctx, sess, log)
	case KindCategories:
		return r.showCategories(ctx, sess, log)
	case KindCategoryNotes:
		return r.showCategoryNotes(ctx, sess, text, log)
	}
	return Reply{}, errFallThrough
}

// restart clears the session and records the reply under the new generation,
// so it survives as the turn's result.
func restart(sess *Session, text string) Reply {
	sess.recordResult(sess.reset(), text)
	return Reply{Text: text}
}

func (r *Router) saveNote(ctx context.Context, sess *Session, text string, log *zap.Logger) (Reply, error) {
	args, err := r.extractArgs(ctx, text, KindSave, log)
	if err != nil {
		return Reply{}, err
	}
	if args.Note == "" {
		return Reply{Text: msgSaveUsage}, nil
	}
	if !r.ensureStore(ctx, log) {
		return Reply{Text: msgStoreDown}, nil
	}

	id, err := r.store.AddNote(ctx, sess.ID(), args.Note)
	var vErr *notes.ValidationError
	switch {
	case errors.As(err, &vErr):
		return Reply{Text: msgSaveUsage}, nil
	case err != nil:
		log.Error("save note failed", zap.Error(err))
		return Reply{Text: msgSaveFailed}, nil
	}

	cctx, cancel := withTimeout(ctx, r.opts.ClassifierTimeout)
	defer cancel()
	suggested, err := r.classifier.SuggestCategories(cctx, args.Note)
	if err != nil {
		log.Warn("suggest categories failed", zap.Int64("note", id), zap.Error(err))
		return Reply{Text: msgSavedPlain}, nil
	}
	categories := notes.NormalizeCategories(suggested)
	if len(categories) == 0 {
		return Reply{Text: msgSavedPlain}, nil
	}

	ok, err := r.store.CategorizeNote(ctx, id, categories)
	if err != nil || !ok {
		log.Warn("categorize note failed", zap.Int64("note", id), zap.Bool("found", ok), zap.Error(err))
		return Reply{Text: msgSavedPlain}, nil
	}
	return Reply{Text: savedWithCategories(categories)}, nil
}

func (r *Router) showNotes(ctx context.Context, sess *Session, log *zap.Logger) (Reply, error) {
	if !r.ensureStore(ctx, log) {
		return Reply{Text: msgStoreDown}, nil
	}
	list := r.store.GetRecentNotes(ctx, sess.ID(), r.opts.RecentNotesLimit)
	if len(list) == 0 {
		return Reply{Text: msgNoNotes}, nil
	}
	return Reply{Text: formatNotes("📒 Your Recent Notes:", list)}, nil
}

func (r *Router) showCategories(ctx context.Context, sess *Session, log *zap.Logger) (Reply, error) {
	if !r.ensureStore(ctx, log) {
		return Reply{Text: msgStoreDown}, nil
	}
	list := r.store.GetAllCategories(ctx, sess.ID())
	if len(list) == 0 {
		return Reply{Text: msgNoCategories}, nil
	}
	return Reply{Text: formatCategories(list)}, nil
}

func (r *Router) showCategoryNotes(ctx context.Context, sess *Session, text string, log *zap.Logger) (Reply, error) {
	args, err := r.extractArgs(ctx, text, KindCategoryNotes, log)
	if err != nil {
		return Reply{}, err
	}
	if args.Category == "" {
		return Reply{Text: msgCategoryUsage}, nil
	}
	if !r.ensureStore(ctx, log) {
		return Reply{Text: msgStoreDown}, nil
	}

	list := r.store.GetNotesByCategory(ctx, sess.ID(), args.Category)
	if len(list) == 0 {
		return Reply{Text: fmt.Sprintf("No notes found in category '%s'", strings.ToLower(args.Category))}, nil
	}
	return Reply{Text: formatNotes(fmt.Sprintf("📒 Notes in '%s':", strings.ToLower(args.Category)), list)}, nil
}

// requestConfirmation finds the notes a remove/edit would touch and parks the
// action until the next reply. Nothing is parked when no note matches.
func (r *Router) requestConfirmation(ctx context.Context, sess *Session, gen uint64, kind Kind, text string, log *zap.Logger) (Reply, error) {
	args, err := r.extractArgs(ctx, text, kind, log)
	if err != nil {
		return Reply{}, err
	}
	if args.Topic == "" {
		if kind == KindEditNotes {
			return Reply{Text: msgEditUsage}, nil
		}
		return Reply{Text: msgRemoveUsage}, nil
	}
	if kind == KindEditNotes && args.NewContent == "" {
		return Reply{Text: msgEditUsage}, nil
	}
	if !r.ensureStore(ctx, log) {
		return Reply{Text: msgStoreDown}, nil
	}

	all := r.store.GetAllNotes(ctx, sess.ID())
	if len(all) == 0 {
		return Reply{Text: noMatches(args.Topic)}, nil
	}

	candidates := lo.Map(all, func(n notes.Note, _ int) ai.Candidate {
		return ai.Candidate{ID: n.ID, Content: n.Content}
	})
	cctx, cancel := withTimeout(ctx, r.opts.ClassifierTimeout)
	defer cancel()
	ids, err := r.classifier.MatchTopic(cctx, args.Topic, candidates)
	if err != nil {
		log.Warn("topic matching failed, falling back to chat", zap.Error(err))
		return Reply{}, errFallThrough
	}

	byID := lo.SliceToMap(all, func(n notes.Note) (int64, string) { return n.ID, n.Content })
	ids = lo.Uniq(lo.Filter(ids, func(id int64, _ int) bool {
		_, ok := byID[id]
		return ok
	}))
	if len(ids) == 0 {
		return Reply{Text: noMatches(args.Topic)}, nil
	}

	p := &PendingConfirmation{
		Action:     kind,
		Topic:      args.Topic,
		NoteIDs:    ids,
		Contents:   lo.Map(ids, func(id int64, _ int) string { return byID[id] }),
		NewContent: args.NewContent,
	}
	if !sess.setPending(gen, p) {
		log.Info("conversation reset while matching notes, dropping confirmation")
		return Reply{Discarded: true}, nil
	}
	log.Info("awaiting confirmation", zap.Stringer("command", kind), zap.Int64s("notes", ids))
	return Reply{Text: confirmPrompt(p), AwaitingConfirmation: true}, nil
}

// resolvePending consumes the parked action with whatever the reply is.
// Only yes/y runs it; the reply text is not processed any further.
func (r *Router) resolvePending(ctx context.Context, sess *Session, gen uint64, text string, log *zap.Logger) Reply {
	p := sess.takePending(gen)
	if p == nil {
		return Reply{Discarded: true}
	}
	if !p.Action.Destructive() {
		log.Error("unexpected pending action", zap.Stringer("command", p.Action))
		return Reply{Text: msgCancelled, Command: p.Action}
	}

	if !isYes(text) {
		log.Info("confirmation declined", zap.Stringer("command", p.Action))
		return Reply{Text: msgCancelled, Command: p.Action}
	}
	if !r.ensureStore(ctx, log) {
		return Reply{Text: msgStoreDown, Command: p.Action}
	}

	if p.Action == KindRemoveNotes {
		return Reply{Text: r.executeRemove(ctx, p, log), Command: p.Action}
	}
	return Reply{Text: r.executeEdit(ctx, p, log), Command: p.Action}
}

func (r *Router) executeRemove(ctx context.Context, p *PendingConfirmation, log *zap.Logger) string {
	done := 0
	for _, id := range p.NoteIDs {
		ok, err := r.store.DeleteNote(ctx, id)
		if err != nil {
			log.Warn("delete note failed", zap.Int64("note", id), zap.Error(err))
			continue
		}
		if ok {
			done++
		}
	}
	log.Info("notes removed", zap.Int("done", done), zap.Int("requested", len(p.NoteIDs)))
	return removedSummary(done, len(p.NoteIDs), p.Topic)
}

func (r *Router) executeEdit(ctx context.Context, p *PendingConfirmation, log *zap.Logger) string {
	done := 0
	for _, id := range p.NoteIDs {
		ok, err := r.store.UpdateNote(ctx, id, p.NewContent)
		var vErr *notes.ValidationError
		if errors.As(err, &vErr) {
			return msgUpdateRejected
		}
		if err != nil {
			log.Warn("update note failed", zap.Int64("note", id), zap.Error(err))
			continue
		}
		if ok {
			done++
		}
	}
	log.Info("notes updated", zap.Int("done", done), zap.Int("requested", len(p.NoteIDs)))
	return updatedSummary(done, len(p.NoteIDs), p.Topic)
}

// chat sends the conversation to the generator. Results of a turn whose
// session was reset meanwhile are dropped.
func (r *Router) chat(ctx context.Context, sess *Session, gen uint64, text string, log *zap.Logger) Reply {
	if !sess.appendMessages(gen, ai.Message{Role: ai.RoleUser, Text: text}) {
		return Reply{Discarded: true}
	}

	gctx, cancel := withTimeout(ctx, r.opts.GeneratorTimeout)
	defer cancel()
	answer, err := r.generator.GetReply(gctx, sess.History())
	if err != nil {
		log.Error("chat reply failed", zap.Error(err))
		return Reply{Text: msgChatFailed}
	}

	if !sess.appendMessages(gen, ai.Message{Role: ai.RoleAssistant, Text: answer}) {
		log.Info("conversation reset during chat, dropping reply")
		return Reply{Discarded: true}
	}
	return Reply{Text: answer}
}

func (r *Router) extractArgs(ctx context.Context, text string, kind Kind, log *zap.Logger) (ai.Args, error) {
	cctx, cancel := withTimeout(ctx, r.opts.ClassifierTimeout)
	defer cancel()

	args, err := r.classifier.ExtractArgs(cctx, text, kind.String())
	if err != nil {
		log.Warn("argument extraction failed, falling back to chat", zap.Stringer("command", kind), zap.Error(err))
		return ai.Args{}, errFallThrough
	}
	return args, nil
}

// ensureStore probes the store and tries one reconnect when the probe fails.
func (r *Router) ensureStore(ctx context.Context, log *zap.Logger) bool {
	if r.store.VerifyConnection(ctx) {
		return true
	}
	log.Warn("store connection lost, reconnecting")
	if err := r.store.Reconnect(ctx); err != nil {
		log.Error("store reconnect failed", zap.Error(err))
		return false
	}
	return r.store.VerifyConnection(ctx)
}

// Reset clears the conversation even while one of its messages is in flight.
func (r *Router) Reset(conversationID string) {
	r.sessions.Reset(conversationID)
}

// History returns the conversation so far, system message first. Reads never
// create a session.
func (r *Router) History(conversationID string) []ai.Message {
	if sess, ok := r.sessions.Lookup(conversationID); ok {
		return sess.History()
	}
	return r.sessions.SystemHistory()
}

func (r *Router) Pending(conversationID string) *PendingConfirmation {
	if sess, ok := r.sessions.Lookup(conversationID); ok {
		return sess.Pending()
	}
	return nil
}

func (r *Router) LastResult(conversationID string) string {
	if sess, ok := r.sessions.Lookup(conversationID); ok {
		return sess.LastResult()
	}
	return ""
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (r *Router) RunJanitor(ctx context.Context, interval, ttl time.Duration) error {
	if interval <= 0 || ttl <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.sessions.EvictIdle(ttl); n > 0 {
				r.log.Info("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func isYes(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y":
		return true
	}
	return false
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
