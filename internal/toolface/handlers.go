package toolface

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"docmind/internal/apperr"
	"docmind/internal/catalog"
	"docmind/internal/memory"
	"docmind/internal/validation"
)

// --- semantic_search ---------------------------------------------------

type semanticSearchOp struct{ svc *Service }

type semanticSearchInput struct {
	Query    string `json:"query"`
	K        int    `json:"k"`
	Version  string `json:"version"`
	Language string `json:"language"`
}

func (o *semanticSearchOp) Name() string        { return "semantic_search" }
func (o *semanticSearchOp) Description() string { return "Vector-similarity search over indexed topics." }
func (o *semanticSearchOp) JSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":    map[string]any{"type": "string"},
			"k":        map[string]any{"type": "integer", "default": 8},
			"version":  map[string]any{"type": "string"},
			"language": map[string]any{"type": "string"},
		},
		"required": []string{"query"},
	}
}

func (o *semanticSearchOp) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var in semanticSearchInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, apperr.New(apperr.InvalidInput, "decode semantic_search input", err)
	}
	if in.Query == "" {
		return nil, apperr.New(apperr.InvalidInput, "query is required", nil)
	}
	if err := validation.MaxSize(in.Query, validation.MaxToolInputBytes); err != nil {
		return nil, apperr.New(apperr.InvalidInput, "query exceeds size limit", err)
	}
	if in.K <= 0 {
		in.K = 8
	}
	if in.K > 50 {
		in.K = 50
	}
	embs, err := o.svc.dispatcher.EmbedMany(ctx, []string{in.Query})
	if err != nil {
		return nil, err
	}
	filter := map[string]string{"type": "topic"}
	if in.Version != "" {
		filter["version"] = in.Version
	}
	if in.Language != "" {
		filter["language"] = in.Language
	}
	results, err := o.svc.vector.Search(ctx, embs[0], in.K, filter)
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": results}, nil
}

// --- keyword_search ------------------------------------------------------

type keywordSearchOp struct{ svc *Service }

type keywordSearchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (o *keywordSearchOp) Name() string        { return "keyword_search" }
func (o *keywordSearchOp) Description() string {
	return "Substring search over topic titles and excerpts, without touching the vector store."
}
func (o *keywordSearchOp) JSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer", "default": 20},
		},
		"required": []string{"query"},
	}
}

func (o *keywordSearchOp) Call(_ context.Context, raw json.RawMessage) (any, error) {
	var in keywordSearchInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, apperr.New(apperr.InvalidInput, "decode keyword_search input", err)
	}
	if in.Query == "" {
		return nil, apperr.New(apperr.InvalidInput, "query is required", nil)
	}
	if err := validation.MaxSize(in.Query, validation.MaxToolInputBytes); err != nil {
		return nil, apperr.New(apperr.InvalidInput, "query exceeds size limit", err)
	}
	if in.Limit <= 0 {
		in.Limit = 20
	}
	return map[string]any{"results": o.svc.catalog.SearchKeyword(in.Query, in.Limit)}, nil
}

// --- get_topic -------------------------------------------------------------

type getTopicOp struct{ svc *Service }

type getTopicInput struct {
	ID string `json:"id"`
}

func (o *getTopicOp) Name() string        { return "get_topic" }
func (o *getTopicOp) Description() string { return "Fetch one topic's catalog record by ID." }
func (o *getTopicOp) JSONSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"id": map[string]any{"type": "string"}},
		"required":   []string{"id"},
	}
}

func (o *getTopicOp) Call(_ context.Context, raw json.RawMessage) (any, error) {
	var in getTopicInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, apperr.New(apperr.InvalidInput, "decode get_topic input", err)
	}
	if in.ID == "" {
		return nil, apperr.New(apperr.InvalidInput, "id is required", nil)
	}
	rec, ok := o.svc.catalog.Get(in.ID)
	if !ok {
		return nil, apperr.New(apperr.NotFound, "no topic with id "+in.ID, nil)
	}
	return rec, nil
}

// --- get_function_info ------------------------------------------------------

type getFunctionInfoOp struct{ svc *Service }

type getFunctionInfoInput struct {
	Name string `json:"name"`
}

func (o *getFunctionInfoOp) Name() string { return "get_function_info" }
func (o *getFunctionInfoOp) Description() string {
	return "Look up topics and saved snippets whose title matches a function or symbol name."
}
func (o *getFunctionInfoOp) JSONSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []string{"name"},
	}
}

func (o *getFunctionInfoOp) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var in getFunctionInfoInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, apperr.New(apperr.InvalidInput, "decode get_function_info input", err)
	}
	if in.Name == "" {
		return nil, apperr.New(apperr.InvalidInput, "name is required", nil)
	}
	topics := o.svc.catalog.SearchKeyword(in.Name, 5)

	var snippets []memory.Snippet
	if o.svc.snippets != nil {
		all, err := o.svc.snippets.Load(ctx)
		if err == nil {
			needle := strings.ToLower(in.Name)
			for _, sn := range all {
				if strings.Contains(strings.ToLower(sn.Title), needle) {
					snippets = append(snippets, sn)
				}
			}
		}
	}
	return map[string]any{"topics": topics, "snippets": snippets}, nil
}

// --- list_titles -----------------------------------------------------------

type listTitlesOp struct{ svc *Service }

type listTitlesInput struct {
	Version  string `json:"version"`
	Language string `json:"language"`
}

func (o *listTitlesOp) Name() string        { return "list_titles" }
func (o *listTitlesOp) Description() string { return "List every indexed topic title, optionally filtered." }
func (o *listTitlesOp) JSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"version":  map[string]any{"type": "string"},
			"language": map[string]any{"type": "string"},
		},
	}
}

func (o *listTitlesOp) Call(_ context.Context, raw json.RawMessage) (any, error) {
	var in listTitlesInput
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, apperr.New(apperr.InvalidInput, "decode list_titles input", err)
		}
	}
	return map[string]any{"titles": o.svc.catalog.ListTitles(in.Version, in.Language)}, nil
}

// --- index_status ----------------------------------------------------------

type indexStatusOp struct{ svc *Service }

func (o *indexStatusOp) Name() string        { return "index_status" }
func (o *indexStatusOp) Description() string { return "Report the current ingest status snapshot." }
func (o *indexStatusOp) JSONSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (o *indexStatusOp) Call(_ context.Context, _ json.RawMessage) (any, error) {
	return o.svc.status.Snapshot(), nil
}

// --- save_snippet ------------------------------------------------------------

type saveSnippetOp struct{ svc *Service }

type saveSnippetInput struct {
	Title       string            `json:"title"`
	Lang        string            `json:"lang"`
	Code        string            `json:"code"`
	Description string            `json:"description"`
	Meta        map[string]string `json:"metadata"`
}

func (o *saveSnippetOp) Name() string        { return "save_snippet" }
func (o *saveSnippetOp) Description() string { return "Record a code snippet into short and medium term memory." }
func (o *saveSnippetOp) JSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"lang":        map[string]any{"type": "string"},
			"code":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
		},
		"required": []string{"title", "code"},
	}
}

// Call journals the snippet into the short/medium tiers immediately, then
// indexes it so keyword_search and get_topic can find it by title. The
// long-term (embedded) write is attempted inline; if the embedding backend
// is degraded the event is queued for the watcher's pending-drain sweep
// instead of failing the call.
func (o *saveSnippetOp) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var in saveSnippetInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, apperr.New(apperr.InvalidInput, "decode save_snippet input", err)
	}
	if in.Title == "" || in.Code == "" {
		return nil, apperr.New(apperr.InvalidInput, "title and code are required", nil)
	}
	if err := validation.MaxSize(in.Code, validation.MaxToolInputBytes); err != nil {
		return nil, apperr.New(apperr.InvalidInput, "code exceeds size limit", err)
	}
	if err := validation.MaxSize(in.Description, validation.MaxToolInputBytes); err != nil {
		return nil, apperr.New(apperr.InvalidInput, "description exceeds size limit", err)
	}
	now := o.svc.clock()
	meta := in.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	meta["lang"] = in.Lang
	meta["title"] = in.Title
	if in.Description != "" {
		meta["description"] = in.Description
	}
	id := catalogID(in.Title, now)
	e := memory.Event{
		ID:        id,
		Domain:    "snippets",
		Text:      in.Code,
		Metadata:  meta,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
	o.svc.ring.Push(e)
	if err := o.svc.journal.Append(e); err != nil {
		return nil, err
	}

	excerpt := in.Description
	if excerpt == "" {
		excerpt = catalog.Excerpt(in.Code)
	}
	rec := catalog.TopicRecord{
		ID: id, Title: in.Title, Path: "snippet:" + id, Language: in.Lang, Excerpt: excerpt, Body: in.Code,
	}
	if err := o.svc.catalog.UpsertMany([]catalog.TopicRecord{rec}); err != nil {
		return nil, err
	}

	degraded := false
	if o.svc.longTerm != nil {
		if err := o.svc.longTerm.Write(ctx, e); err != nil {
			degraded = true
			if o.svc.pending != nil {
				if qerr := o.svc.pending.Enqueue(e); qerr != nil {
					return nil, qerr
				}
			}
		}
	}
	return map[string]any{"id": e.ID, "degraded": degraded}, nil
}

func catalogID(title string, now time.Time) string {
	return "snippet-" + now.UTC().Format("20060102T150405.000000000") + "-" + hashTitle(title)
}

func hashTitle(title string) string {
	h := fnv.New64a()
	h.Write([]byte(title))
	return fmt.Sprintf("%x", h.Sum64())
}

// --- trigger_reindex ---------------------------------------------------------

type triggerReindexOp struct{ svc *Service }

type triggerReindexInput struct {
	Roots    []string `json:"roots"`
	Recreate bool     `json:"recreate"`
	DryRun   bool     `json:"dry_run"`
}

func (o *triggerReindexOp) Name() string        { return "trigger_reindex" }
func (o *triggerReindexOp) Description() string { return "Run an ingest pass over the given archive roots." }
func (o *triggerReindexOp) JSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"roots":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"recreate": map[string]any{"type": "boolean", "default": false},
			"dry_run":  map[string]any{"type": "boolean", "default": false},
		},
		"required": []string{"roots"},
	}
}

func (o *triggerReindexOp) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var in triggerReindexInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, apperr.New(apperr.InvalidInput, "decode trigger_reindex input", err)
	}
	if len(in.Roots) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "roots is required", nil)
	}
	if o.svc.reindex == nil {
		return nil, apperr.New(apperr.Configuration, "reindex is not wired", nil)
	}
	topics, err := o.svc.reindex(ctx, in.Roots, in.Recreate, in.DryRun)
	if err != nil {
		return nil, err
	}
	return map[string]any{"topics_indexed": topics}, nil
}
