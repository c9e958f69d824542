package api

import (
	"time"

	"github.com/google/uuid"
)

type AnalyzeRequest struct {
	Text      string   `json:"text" schema:"text"`
	Threshold *float64 `json:"threshold,omitempty" schema:"threshold"`
}

type NerEntity struct {
	EntityGroup string  `json:"entity_group"`
	Score       float64 `json:"score"`
	Word        string  `json:"word"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
}

type DateMatch struct {
	Date  string `json:"date"`
	Start int    `json:"start"`
	Stop  int    `json:"stop"`
}

type TimeMatch struct {
	Time     string `json:"time"`
	Original string `json:"original"`
	Start    int    `json:"start"`
	Stop     int    `json:"stop"`
}

type PeselMatch struct {
	Pesel string `json:"pesel"`
	Start int    `json:"start"`
	Stop  int    `json:"stop"`
}

type PhoneMatch struct {
	Phone    string `json:"phone"`
	Original string `json:"original"`
	Start    int    `json:"start"`
	Stop     int    `json:"stop"`
}

type AnalyzeResponse struct {
	InputText  string       `json:"input_text"`
	NerResults []NerEntity  `json:"ner_results"`
	Dates      []DateMatch  `json:"DATE"`
	Times      []TimeMatch  `json:"TIME"`
	Pesels     []PeselMatch `json:"PESEL"`
	Phones     []PhoneMatch `json:"PHONE"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string
	Model  string
}

type CreateJobRequest struct {
	Name        string
	StorageType string
	Bucket      string
	Prefix      string
	Threshold   *float64

	// group name to query over document labels
	Groups map[string]string
}

type CreateJobResponse struct {
	JobId uuid.UUID
}

type Group struct {
	Id    uuid.UUID
	Name  string
	Query string

	Objects []string `json:"Objects,omitempty"`
}

type Job struct {
	Id          uuid.UUID
	Name        string
	StorageType string
	Bucket      string
	Prefix      string
	Threshold   float64

	Status         string
	CreationTime   time.Time
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`

	TotalDocuments     int
	SucceededDocuments int
	FailedDocuments    int

	LabelCounts map[string]uint64 `json:"LabelCounts,omitempty"`
	Groups      []Group           `json:"Groups,omitempty"`
	Errors      []string          `json:"Errors,omitempty"`
}

type Document struct {
	Object        string
	Size          int64
	EntityCount   int
	ProcessedTime time.Time
	Result        AnalyzeResponse
}

type DocumentsParams struct {
	Group  string `schema:"group"`
	Offset int    `schema:"offset"`
	Limit  int    `schema:"limit"`
}

type SearchParams struct {
	Query string `schema:"query"`
}

type SearchResponse struct {
	Objects []string
}
