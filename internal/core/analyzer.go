package core

import (
	"context"
	"fmt"
	"io"
	"pl-ner-backend/internal/core/types"
	"pl-ner-backend/internal/extract"
	"pl-ner-backend/internal/storage"
	"pl-ner-backend/pkg/api"
)

const DefaultThreshold = 0.5

// Analyzer combines the NER model with the rule based extractors.
type Analyzer struct {
	engine *extract.Engine
	model  Model
}

func NewAnalyzer(engine *extract.Engine, model Model) *Analyzer {
	if model == nil {
		model = nullModel{}
	}
	return &Analyzer{engine: engine, model: model}
}

func (a *Analyzer) Engine() *extract.Engine {
	return a.engine
}

func (a *Analyzer) Analyze(ctx context.Context, text string, threshold float64) (api.AnalyzeResponse, error) {
	if err := ctx.Err(); err != nil {
		return api.AnalyzeResponse{}, err
	}

	entities, err := a.model.Predict(text)
	if err != nil {
		return api.AnalyzeResponse{}, fmt.Errorf("error running ner model: %w", err)
	}

	return BuildResponse(text, FilterByScore(entities, threshold), a.engine.Extract(text)), nil
}

// AnalyzeDocument parses a document into chunks and analyzes each of them.
// Offsets in the merged response are relative to the whole document.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, parser storage.Parser, object string, data io.Reader, threshold float64) (api.AnalyzeResponse, error) {
	chunks := parser.Parse(object, data)
	defer func() {
		for range chunks {
		}
	}()

	var parts []api.AnalyzeResponse
	for chunk := range chunks {
		if chunk.Error != nil {
			return api.AnalyzeResponse{}, chunk.Error
		}

		res, err := a.Analyze(ctx, chunk.Text, threshold)
		if err != nil {
			return api.AnalyzeResponse{}, fmt.Errorf("error analyzing text at offset %d: %w", chunk.Offset, err)
		}
		ShiftResponse(&res, chunk.Offset)
		parts = append(parts, res)
	}

	return MergeResponses(parts), nil
}

func BuildResponse(text string, entities []types.Entity, result extract.Result) api.AnalyzeResponse {
	res := api.AnalyzeResponse{
		InputText:  text,
		NerResults: make([]api.NerEntity, 0, len(entities)),
		Dates:      make([]api.DateMatch, 0, len(result.Dates)),
		Times:      make([]api.TimeMatch, 0, len(result.Times)),
		Pesels:     make([]api.PeselMatch, 0, len(result.Pesels)),
		Phones:     make([]api.PhoneMatch, 0, len(result.Phones)),
	}

	for _, e := range entities {
		res.NerResults = append(res.NerResults, api.NerEntity{
			EntityGroup: e.Label, Score: e.Score, Word: e.Text, Start: e.Start, End: e.End,
		})
	}
	for _, m := range result.Dates {
		res.Dates = append(res.Dates, api.DateMatch{Date: m.Value, Start: m.Start, Stop: m.Stop})
	}
	for _, m := range result.Times {
		res.Times = append(res.Times, api.TimeMatch{Time: m.Value, Original: m.Text, Start: m.Start, Stop: m.Stop})
	}
	for _, m := range result.Pesels {
		res.Pesels = append(res.Pesels, api.PeselMatch{Pesel: m.Value, Start: m.Start, Stop: m.Stop})
	}
	for _, m := range result.Phones {
		res.Phones = append(res.Phones, api.PhoneMatch{Phone: m.Value, Original: m.Text, Start: m.Start, Stop: m.Stop})
	}

	return res
}

// ShiftResponse moves every span of res by offset runes, used when a document
// is analyzed in chunks.
func ShiftResponse(res *api.AnalyzeResponse, offset int) {
	for i := range res.NerResults {
		res.NerResults[i].Start += offset
		res.NerResults[i].End += offset
	}
	for i := range res.Dates {
		res.Dates[i].Start += offset
		res.Dates[i].Stop += offset
	}
	for i := range res.Times {
		res.Times[i].Start += offset
		res.Times[i].Stop += offset
	}
	for i := range res.Pesels {
		res.Pesels[i].Start += offset
		res.Pesels[i].Stop += offset
	}
	for i := range res.Phones {
		res.Phones[i].Start += offset
		res.Phones[i].Stop += offset
	}
}

// MergeResponses concatenates chunk responses that were already shifted to
// document offsets. The input text is not carried over.
func MergeResponses(parts []api.AnalyzeResponse) api.AnalyzeResponse {
	out := BuildResponse("", nil, extract.Result{})
	for _, p := range parts {
		out.NerResults = append(out.NerResults, p.NerResults...)
		out.Dates = append(out.Dates, p.Dates...)
		out.Times = append(out.Times, p.Times...)
		out.Pesels = append(out.Pesels, p.Pesels...)
		out.Phones = append(out.Phones, p.Phones...)
	}
	return out
}

func EntityCount(res api.AnalyzeResponse) int {
	return len(res.NerResults) + len(res.Dates) + len(res.Times) + len(res.Pesels) + len(res.Phones)
}
