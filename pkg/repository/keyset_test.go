package repository

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
)

func TestKeysetPredicate(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	spec := cursor.Spec{cursor.Desc("created_at"), cursor.Asc("id")}
	values := codec.Values{"created_at": ts, "id": int64(7)}

	tests := []struct {
		name     string
		dialect  Dialect
		spec     cursor.Spec
		startArg int
		before   bool
		want     string
		wantArgs []interface{}
	}{
		{
			name:     "postgres forward",
			dialect:  Postgres,
			spec:     spec,
			startArg: 1,
			want:     `("created_at" < $1 OR ("created_at" = $1 AND "id" > $2))`,
			wantArgs: []interface{}{ts, int64(7)},
		},
		{
			name:     "postgres backward",
			dialect:  Postgres,
			spec:     spec,
			startArg: 1,
			before:   true,
			want:     `("created_at" > $1 OR ("created_at" = $1 AND "id" < $2))`,
			wantArgs: []interface{}{ts, int64(7)},
		},
		{
			name:     "postgres offset placeholders",
			dialect:  Postgres,
			spec:     cursor.Spec{cursor.Asc("id")},
			startArg: 3,
			want:     `("id" > $3)`,
			wantArgs: []interface{}{int64(7)},
		},
		{
			name:     "mysql repeats arguments",
			dialect:  MySQL,
			spec:     spec,
			startArg: 1,
			want:     "(`created_at` < ? OR (`created_at` = ? AND `id` > ?))",
			wantArgs: []interface{}{ts, ts, int64(7)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args, err := KeysetPredicate(tt.dialect, tt.spec, values, tt.startArg, tt.before)
			if err != nil {
				t.Fatalf("KeysetPredicate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("KeysetPredicate() = %s, want %s", got, tt.want)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestKeysetPredicate_ThreeFields(t *testing.T) {
	spec := cursor.Spec{cursor.Asc("a"), cursor.Desc("b"), cursor.Asc("id")}
	values := codec.Values{"a": 1, "b": 2, "id": 3}

	got, _, err := KeysetPredicate(Postgres, spec, values, 1, false)
	if err != nil {
		t.Fatalf("KeysetPredicate() error = %v", err)
	}
	want := `("a" > $1 OR ("a" = $1 AND "b" < $2) OR ("a" = $1 AND "b" = $2 AND "id" > $3))`
	if got != want {
		t.Errorf("KeysetPredicate() =\n%s\nwant\n%s", got, want)
	}
}

func TestKeysetPredicate_Errors(t *testing.T) {
	spec := cursor.Spec{cursor.Asc("name"), cursor.Asc("id")}

	if _, _, err := KeysetPredicate(Postgres, spec, codec.Values{"id": 1}, 1, false); !errors.Is(err, codec.ErrMissingValue) {
		t.Errorf("expected ErrMissingValue, got %v", err)
	}
	if _, _, err := KeysetPredicate(Postgres, spec, codec.Values{"name": nil, "id": 1}, 1, false); !errors.Is(err, ErrNullCursorValue) {
		t.Errorf("expected ErrNullCursorValue, got %v", err)
	}

	got, args, err := KeysetPredicate(Postgres, nil, codec.Values{"id": 1}, 1, false)
	if err != nil || got != "" || len(args) != 0 {
		t.Errorf("empty spec = %q, %v, %v", got, args, err)
	}
}

func TestOrderByClause(t *testing.T) {
	spec := cursor.Spec{cursor.Desc("u.created_at"), cursor.Asc("id")}

	if got, want := OrderByClause(Postgres, spec, false), `"u"."created_at" DESC, "id" ASC`; got != want {
		t.Errorf("OrderByClause() = %s, want %s", got, want)
	}
	if got, want := OrderByClause(MySQL, spec, true), "`u`.`created_at` ASC, `id` DESC"; got != want {
		t.Errorf("OrderByClause(reverse) = %s, want %s", got, want)
	}
}

func TestQuoteIdentifier_EscapesQuotes(t *testing.T) {
	if got, want := Postgres.QuoteIdentifier(`we"ird`), `"we""ird"`; got != want {
		t.Errorf("postgres = %s, want %s", got, want)
	}
	if got, want := MySQL.QuoteIdentifier("we`ird"), "`we``ird`"; got != want {
		t.Errorf("mysql = %s, want %s", got, want)
	}
}

func TestDialectFor(t *testing.T) {
	if got := DialectFor(&mysql.MySQLDriver{}); got != MySQL {
		t.Errorf("DialectFor(mysql) = %s", got.Name())
	}
	if got := DialectFor(&pq.Driver{}); got != Postgres {
		t.Errorf("DialectFor(pq) = %s", got.Name())
	}
	if got := DialectFor(nil); got != Postgres {
		t.Errorf("DialectFor(nil) = %s", got.Name())
	}
}

func TestParseDialect(t *testing.T) {
	for name, want := range map[string]Dialect{"postgres": Postgres, "PostgreSQL": Postgres, "mysql": MySQL, "mariadb": MySQL} {
		got, err := ParseDialect(name)
		if err != nil || got != want {
			t.Errorf("ParseDialect(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Error("expected error for unsupported dialect")
	}
}

func TestBuildPageQuery(t *testing.T) {
	spec := cursor.Spec{cursor.Asc("id")}

	query, args, err := buildPageQuery(Postgres, "users", spec, codec.Values{"id": int64(5)}, Filter{"tenant": "t1", "status": "active"}, 11, false)
	if err != nil {
		t.Fatalf("buildPageQuery() error = %v", err)
	}
	want := `SELECT * FROM "users" WHERE "status" = $1 AND "tenant" = $2 AND ("id" > $3) ORDER BY "id" ASC LIMIT $4`
	if query != want {
		t.Errorf("query =\n%s\nwant\n%s", query, want)
	}
	if !reflect.DeepEqual(args, []interface{}{"active", "t1", int64(5), 11}) {
		t.Errorf("args = %v", args)
	}
}
