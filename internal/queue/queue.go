// Package queue holds the compiled, ready-to-run form of a document.
package queue

import (
	"fmt"
	"strings"
)

// Item is one dequeued step.
type Item struct {
	Connection string
	Database   string
	SQL        string
	Result     string
}

// Queue is a one-shot FIFO of steps plus an optional aggregation. Steps are
// kept in four parallel lists that are always pushed and popped together.
type Queue struct {
	name        string
	connections []string
	databases   []string
	statements  []string
	results     []string

	aggregation       string
	aggregationResult string
	hasAggregation    bool
}

// New returns an empty queue for the named document.
func New(name string) *Queue {
	return &Queue{name: name}
}

// Name returns the document name the queue was compiled from.
func (q *Queue) Name() string { return q.name }

// Push appends a step.
func (q *Queue) Push(connection, database, sql, result string) {
	q.connections = append(q.connections, connection)
	q.databases = append(q.databases, database)
	q.statements = append(q.statements, sql)
	q.results = append(q.results, result)
}

// SetAggregation sets the statement run over the staged results.
func (q *Queue) SetAggregation(sql, result string) {
	q.aggregation = sql
	q.aggregationResult = result
	q.hasAggregation = true
}

// HasNext reports whether a step is ready to be dequeued. It is false once
// the parallel lists are drained or have diverged.
func (q *Queue) HasNext() bool {
	n := len(q.connections)
	return n > 0 &&
		len(q.databases) == n &&
		len(q.statements) == n &&
		len(q.results) == n
}

// Next dequeues the head step.
func (q *Queue) Next() (Item, bool) {
	if !q.HasNext() {
		return Item{}, false
	}
	item := Item{
		Connection: q.connections[0],
		Database:   q.databases[0],
		SQL:        q.statements[0],
		Result:     q.results[0],
	}
	q.connections = q.connections[1:]
	q.databases = q.databases[1:]
	q.statements = q.statements[1:]
	q.results = q.results[1:]
	return item, true
}

// Len returns the number of steps still queued.
func (q *Queue) Len() int {
	if !q.HasNext() {
		return 0
	}
	return len(q.connections)
}

// Items returns the queued steps without dequeuing them.
func (q *Queue) Items() []Item {
	items := make([]Item, q.Len())
	for i := range items {
		items[i] = Item{
			Connection: q.connections[i],
			Database:   q.databases[i],
			SQL:        q.statements[i],
			Result:     q.results[i],
		}
	}
	return items
}

// HasAggregation reports whether an aggregation was set.
func (q *Queue) HasAggregation() bool { return q.hasAggregation }

// Aggregation returns the aggregation statement and its result id.
func (q *Queue) Aggregation() (sql, result string) {
	return q.aggregation, q.aggregationResult
}

// Canonical renders the queued steps as a single SQL script, each statement
// preceded by a comment header naming where it runs. It does not drain the
// queue.
func (q *Queue) Canonical() string {
	var sb strings.Builder
	for i := range q.Len() {
		fmt.Fprintf(&sb, "/*\nsequence: #%d\nconnection: %s\ndatabase: %s\nresult identifier: %s\n*/\n",
			i+1, q.connections[i], q.databases[i], q.results[i])
		sb.WriteString(terminate(q.statements[i]))
		sb.WriteString("\n")
	}
	if q.hasAggregation {
		fmt.Fprintf(&sb, "/*\npost-sequence\nresult identifier: %s\n*/\n", q.aggregationResult)
		sb.WriteString(terminate(q.aggregation))
		sb.WriteString("\n")
	}
	return sb.String()
}

func terminate(sql string) string {
	sql = strings.TrimSpace(sql)
	if strings.HasSuffix(sql, ";") {
		return sql + "\n"
	}
	return sql + ";\n"
}
