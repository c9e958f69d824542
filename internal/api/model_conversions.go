package api

import (
	"encoding/json"
	"fmt"

	"pl-ner-backend/internal/database"
	"pl-ner-backend/pkg/api"
)

func convertGroup(g database.JobGroup) api.Group {
	var objects []string
	for _, obj := range g.Objects {
		objects = append(objects, obj.Object)
	}
	return api.Group{
		Id:      g.Id,
		Name:    g.Name,
		Query:   g.Query,
		Objects: objects,
	}
}

func convertGroups(gs []database.JobGroup) []api.Group {
	var groups []api.Group
	for _, g := range gs {
		groups = append(groups, convertGroup(g))
	}
	return groups
}

func convertJob(j database.Job) api.Job {
	job := api.Job{
		Id:                 j.Id,
		Name:               j.Name,
		StorageType:        j.StorageType,
		Bucket:             j.Bucket,
		Prefix:             j.Prefix.String,
		Threshold:          j.Threshold,
		Status:             j.Status,
		CreationTime:       j.CreationTime,
		TotalDocuments:     j.TotalDocuments,
		SucceededDocuments: j.SucceededDocuments,
		FailedDocuments:    j.FailedDocuments,
		Groups:             convertGroups(j.Groups),
	}

	if j.CompletionTime.Valid {
		job.CompletionTime = &j.CompletionTime.Time
	}

	if len(j.Labels) > 0 {
		job.LabelCounts = make(map[string]uint64, len(j.Labels))
		for _, l := range j.Labels {
			job.LabelCounts[l.Label] = l.Count
		}
	}

	for _, e := range j.Errors {
		if e.Object != "" {
			job.Errors = append(job.Errors, fmt.Sprintf("%s: %s", e.Object, e.Error))
		} else {
			job.Errors = append(job.Errors, e.Error)
		}
	}

	return job
}

func convertJobs(js []database.Job) []api.Job {
	jobs := make([]api.Job, 0, len(js))
	for _, j := range js {
		jobs = append(jobs, convertJob(j))
	}
	return jobs
}

func convertDocument(d database.Document) (api.Document, error) {
	doc := api.Document{
		Object:        d.Object,
		Size:          d.Size,
		EntityCount:   d.EntityCount,
		ProcessedTime: d.ProcessedTime,
	}
	if err := json.Unmarshal(d.Result, &doc.Result); err != nil {
		return api.Document{}, fmt.Errorf("error parsing result of document %s: %w", d.Object, err)
	}
	return doc, nil
}
