package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/scriptref/internal/store"
)

// Store bridge functions. Risor scripts cannot handle Go struct pointers
// well, so definitions are returned as lists of maps with primitive values.

// definitions_by_name(item_type, name) → [{"name", "local_name", "script_name", "path", ...}]
func makeDefinitionsByNameFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("definitions_by_name", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("definitions_by_name", 2, len(args))
		}
		itemType, err := toString(args[0])
		if err != nil {
			return object.Errorf("definitions_by_name: %v", err)
		}
		name, err := toString(args[1])
		if err != nil {
			return object.Errorf("definitions_by_name: %v", err)
		}

		defs, queryErr := s.DefinitionsByName(itemType, name)
		if queryErr != nil {
			return object.Errorf("definitions_by_name: %v", queryErr)
		}
		return definitionsToList(defs)
	})
}

// definitions_by_type(item_type) → [{...}]
func makeDefinitionsByTypeFn(s store.DataStore) *object.Builtin {
	return object.NewBuiltin("definitions_by_type", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("definitions_by_type", 1, len(args))
		}
		itemType, err := toString(args[0])
		if err != nil {
			return object.Errorf("definitions_by_type: %v", err)
		}

		defs, queryErr := s.DefinitionsByType(itemType)
		if queryErr != nil {
			return object.Errorf("definitions_by_type: %v", queryErr)
		}
		return definitionsToList(defs)
	})
}

// makeDBQueryFn creates a db_query bridge that executes read-only SQL.
// Returns a list of maps (column name → value).
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
			}
		}

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		results := []object.Object{}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		return object.NewList(results)
	})
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

func definitionsToList(defs []*store.Definition) object.Object {
	results := make([]object.Object, 0, len(defs))
	for _, d := range defs {
		results = append(results, object.NewMap(map[string]object.Object{
			"item_type":   object.NewString(d.ItemType),
			"name":        object.NewString(d.Name),
			"local_name":  object.NewString(d.LocalName),
			"script_name": object.NewString(d.ScriptName),
			"path":        object.NewString(d.Path),
			"start_line":  object.NewInt(int64(d.StartLine)),
			"start_col":   object.NewInt(int64(d.StartCol)),
			"end_line":    object.NewInt(int64(d.EndLine)),
			"end_col":     object.NewInt(int64(d.EndCol)),
		}))
	}
	return object.NewList(results)
}

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return int(i.Value())
	}
	if f, ok := v.(*object.Float); ok {
		return int(f.Value())
	}
	return 0
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
