// Package erp talks to the manufacturing backend: the department catalogue,
// the REST client, and row sources that feed grid controllers.
package erp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/loss"
	"github.com/needha-erp/erpdesk/internal/util"
)

// Field maps one backend record field onto a row key.
type Field struct {
	Key     string // row key
	Source  string // backend (Salesforce) field name
	Column  string // replica column; empty means Source
	Title   string // column header
	Default any    // used when the backend value is missing or empty
}

func (f Field) column() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Source
}

// Department describes one table: where its rows come from and how backend
// records become grid rows.
type Department struct {
	Name        string
	Stage       loss.Stage // empty for non-production tables (orders)
	Path        string     // list endpoint
	Object      string     // replica table
	Fields      []Field
	DateField   grid.FieldID
	DefaultSort grid.FieldID
	SortDesc    bool
}

// Options returns the grid options a department table starts with.
func (d Department) Options(pageSize int) grid.Options {
	return grid.Options{
		PageSize:  pageSize,
		SortKey:   d.DefaultSort,
		SortDesc:  d.SortDesc,
		DateField: d.DateField,
	}
}

// Keys returns the row keys in display order.
func (d Department) Keys() []string {
	keys := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Field returns the field with row key k.
func (d Department) Field(k string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Key == k {
			return f, true
		}
	}
	return Field{}, false
}

// MapRecord converts a backend record into a row.
func (d Department) MapRecord(rec map[string]any) grid.Row {
	return d.mapWith(rec, func(f Field) string { return f.Source })
}

// MapReplicaRecord converts a replica row (keyed by column) into a row.
func (d Department) MapReplicaRecord(rec map[string]any) grid.Row {
	return d.mapWith(rec, Field.column)
}

func (d Department) mapWith(rec map[string]any, name func(Field) string) grid.Row {
	row := make(grid.Row, len(d.Fields))
	for _, f := range d.Fields {
		v, ok := rec[name(f)]
		if s, isStr := v.(string); isStr {
			if s == "" {
				ok = false
			} else {
				v = util.ToValidUTF8(s)
			}
		}
		if !ok || v == nil {
			v = f.Default
		}
		row[f.Key] = v
	}
	return row
}

// stageFields is the field set shared by the production departments. The
// backend spells a few of these differently per object, hence the overrides.
func stageFields(s loss.Stage, issued, received string) []Field {
	title := s.Title()
	return []Field{
		{Key: "id", Source: "Name", Title: "ID"},
		{Key: "issuedWeight", Source: issued, Title: "Issued Wt", Default: 0.0},
		{Key: "issuedDate", Source: "Issued_Date__c", Title: "Issued", Default: "-"},
		{Key: "receivedWeight", Source: received, Title: "Received Wt", Default: 0.0},
		{Key: "receivedDate", Source: "Received_Date__c", Title: "Received", Default: "-"},
		{Key: "status", Source: "status__c", Title: "Status"},
		{Key: s.LossField(), Source: title + "_loss__c", Title: title + " Loss", Default: 0.0},
	}
}

func stage(s loss.Stage, object, issued, received string) Department {
	return Department{
		Name:        string(s),
		Stage:       s,
		Path:        "/api/" + string(s),
		Object:      object,
		Fields:      stageFields(s, issued, received),
		DateField:   "issuedDate",
		DefaultSort: "issuedDate",
		SortDesc:    true,
	}
}

// Orders is the customer order book.
var Orders = Department{
	Name:   "orders",
	Path:   "/api/orders",
	Object: "Order__c",
	Fields: []Field{
		{Key: "id", Source: "id", Column: "Name", Title: "Order"},
		{Key: "dealName", Source: "partyName", Column: "Party_Name__c", Title: "Party"},
		{Key: "advanceMetal", Source: "advanceMetal", Column: "Advance_Metal__c", Title: "Advance Metal", Default: 0.0},
		{Key: "expectedEndDate", Source: "deliveryDate", Column: "Delivery_Date__c", Title: "Delivery"},
		{Key: "status", Source: "status", Column: "Status__c", Title: "Status", Default: "Open"},
		{Key: "clientSheetPdf", Source: "pdfUrl", Column: "Pdf__c", Title: "Client Sheet"},
	},
	DateField:   "expectedEndDate",
	DefaultSort: "expectedEndDate",
}

// Departments is the catalogue, in workflow order with orders first.
var Departments = []Department{
	Orders,
	stage(loss.Casting, "Casting_Dept__c", "Issud_weight__c", "Received_Weight__c"),
	stage(loss.Filing, "Filing__c", "Issued_Weight__c", "Received_Weight__c"),
	stage(loss.Grinding, "Grinding__c", "Issued_Weight__c", "Received_Weight__c"),
	stage(loss.Setting, "Setting__c", "Issued_Weight__c", "Received_Weight__c"),
	stage(loss.Polishing, "Polishing__c", "Issued_Weight__c", "Received_Weight__c"),
	stage(loss.Dull, "Dull__c", "Issued_Weight__c", "Returned_weight__c"),
}

// Names returns the catalogue names, sorted.
func Names() []string {
	names := make([]string, len(Departments))
	for i, d := range Departments {
		names[i] = d.Name
	}
	sort.Strings(names)
	return names
}

// Lookup finds a department by name, ignoring case.
func Lookup(name string) (Department, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, d := range Departments {
		if d.Name == n {
			return d, nil
		}
	}
	return Department{}, fmt.Errorf("%w: %q", util.ErrUnknownDepartment, name)
}

// StageDepartment returns the department for a production stage.
func StageDepartment(s loss.Stage) (Department, error) {
	return Lookup(string(s))
}
