package ipp

import (
	"time"

	"github.com/OpenPrinting/goipp"
	"github.com/gopherprint/ippserver/job"
)

// BuildJobAttributes assembles the Get-Job-Attributes payload,
// generalized from ippsrv/job.go's attributes() method to the job
// lifecycle and timestamp fields this spec adds (pending-held,
// processing-stopped, fetchable reason, impressions-completed).
func BuildJobAttributes(j *job.Job) *GroupedAttributes {
	g := NewGroupedAttributes()
	const Jd = groupJobDescription

	g.Add(Jd, "job-id", goipp.TagInteger, goipp.Integer(j.ID()))
	g.Add(Jd, "job-name", goipp.TagName, goipp.String(j.Name))
	g.Add(Jd, "job-uri", goipp.TagURI, goipp.String(j.JobURI))
	g.Add(Jd, "job-state", goipp.TagEnum, goipp.Integer(j.State()))
	g.Add(Jd, "job-state-reasons", goipp.TagKeyword, stringsToValues(j.Reason().Strings())...)
	g.Add(Jd, "job-printer-uri", goipp.TagURI, goipp.String(j.PrinterURI))
	g.Add(Jd, "job-originating-user-name", goipp.TagName, goipp.String(j.Username))
	g.Add(Jd, "time-at-creation", goipp.TagInteger, epoch(j.Created))
	g.Add(Jd, "time-at-processing", goipp.TagInteger, epoch(j.Processing))
	g.Add(Jd, "time-at-completed", goipp.TagInteger, epoch(j.Completed))
	g.Add(Jd, "job-impressions-completed", goipp.TagInteger, goipp.Integer(j.Impressions))
	g.Add(Jd, "job-k-octets", goipp.TagInteger, goipp.Integer(0))

	const T = groupJobTemplate
	g.Add(T, "job-priority", goipp.TagInteger, goipp.Integer(j.Priority()))

	return g
}

func epoch(t time.Time) goipp.Value {
	if t.IsZero() {
		return goipp.Integer(0)
	}
	return goipp.Integer(int32(t.Unix()))
}
