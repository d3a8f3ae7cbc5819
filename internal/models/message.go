package models

import "time"

// MessageRecord is one deduplicated page as kept in history and served to
// the query, push and display consumers.
type MessageRecord struct {
	ID               string    `json:"id"`               // ULID
	TimestampDisplay string    `json:"timestampDisplay"` // decoder or local time, "2006-01-02 15:04:05"
	ReceivedAt       time.Time `json:"receivedAt"`
	GroupID          string    `json:"groupId"`
	BodyText         string    `json:"bodyText"`
	ReceiverLabels   []string  `json:"receiverLabels"`
	Capcodes         []string  `json:"capcodes"`
	Priority         Priority  `json:"priority"`
	Sender           Sender    `json:"sender"`
	Posted           bool      `json:"posted"`
}

// Clone returns a deep copy safe to hand out of the store.
func (m MessageRecord) Clone() MessageRecord {
	m.ReceiverLabels = append([]string(nil), m.ReceiverLabels...)
	m.Capcodes = append([]string(nil), m.Capcodes...)
	return m
}

// Priority is the urgency class derived from the message text.
// 1 is the most urgent, 0 means no class matched.
type Priority int

const (
	PriorityNone Priority = iota
	Priority1
	Priority2
	Priority3
	Priority4
)
