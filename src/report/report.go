// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package report renders tracked domains as an XLSX workbook.
//
// The workbook holds two sheets. [SheetDomains] has one row per tracked
// domain with the ISPs currently enforcing it. [SheetInstances] has one row
// per (domain, ISP) blocking instance.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/H0llyW00dzZ/blockwatch/src/tracker"
)

// Sheet names.
const (
	SheetDomains   = "Domains"
	SheetInstances = "Instances"
)

// ErrWrite is returned when the workbook cannot be built or written.
var ErrWrite = errors.New("report: write failed")

var (
	domainHeader   = []any{"Domain", "First Blocked On", "Added By", "Site", "Recommendation URL", "Decision Date", "ISPs", "ISP Count"}
	instanceHeader = []any{"Domain", "ISP", "Blocked On"}
)

// Export writes summaries to w as an XLSX workbook.
func Export(w io.Writer, summaries []tracker.DomainSummary) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrWrite, cerr)
		}
	}()

	if err = build(f, summaries); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = f.Write(w); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func build(f *excelize.File, summaries []tracker.DomainSummary) error {
	if err := f.SetSheetName(f.GetSheetName(0), SheetDomains); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetInstances); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	domains := make([][]any, 0, len(summaries))
	var instances [][]any
	for _, s := range summaries {
		domains = append(domains, domainRow(s))
		for _, inst := range s.Instances {
			instances = append(instances, []any{inst.Domain, inst.ISP, formatTime(inst.BlockedOn)})
		}
	}

	if err := writeSheet(f, SheetDomains, domainHeader, domains, bold); err != nil {
		return err
	}
	if err := writeSheet(f, SheetInstances, instanceHeader, instances, bold); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, style int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 24)
}

func domainRow(s tracker.DomainSummary) []any {
	var site, url, decided string
	if s.Site != nil {
		site = s.Site.Name
		url = s.Site.RecommendationURL
		if s.Site.DecisionDate != nil {
			decided = s.Site.DecisionDate.UTC().Format(time.DateOnly)
		}
	}

	isps := s.ISPs()
	return []any{
		s.Domain,
		formatTime(s.FirstBlockedOn),
		s.AddedBy,
		site,
		url,
		decided,
		strings.Join(isps, ", "),
		len(isps),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
