package models

import "time"

type PaperRef struct {
	ID               uint `gorm:"primaryKey"`
	ResearchRecordID uint
	ArxivID          string
	Title            string
	Summary          string `gorm:"type:text"`
	Authors          string // comma separated
	PDFURL           string
	AbsURL           string
	Score            float64
	Position         int // rank after reranking, 0 is best
	Published        time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
