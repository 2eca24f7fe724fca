package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theory/jsonpath"

	"github.com/roach88/golden/canon"
)

func TestRegex(t *testing.T) {
	input := map[string]any{
		"hello":  "world",
		"hello2": "again",
		"path":   map[string]any{"to": map[string]any{"anotherkey": "hi", "inside": map[string]any{"hello": "inside"}}},
	}

	got := apply(t, input, Regex("hello", "new-value"))

	assert.Equal(t, canon.MustFromGo(map[string]any{
		"new-value":  "world",
		"new-value2": "again",
		"path":       map[string]any{"to": map[string]any{"anotherkey": "hi", "inside": map[string]any{"new-value": "inside"}}},
	}), got)
}

func TestRegex_GroupReference(t *testing.T) {
	got := apply(t, map[string]any{"arn": "arn:aws:sqs:us-east-1:111111111111:queue"},
		Regex(`arn:aws:(\w+):[\w-]+:\d{12}:`, "arn:<partition>:$1:<region>:<account>:"))
	assert.Equal(t, map[string]any{"arn": "arn:<partition>:sqs:<region>:<account>:queue"}, got)
}

func TestParseRegex_Invalid(t *testing.T) {
	_, err := ParseRegex("([", "x")
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	values := []string{
		"a+b",
		"question?",
		"amount: $4.00",
		"emoji: ^^",
		"sentence.",
		"others (like so)",
		"special {char}",
	}

	for _, value := range values {
		t.Run(value, func(t *testing.T) {
			got := apply(t, map[string]any{"key": "some " + value + " with more text"}, Text(value, "<value>"))
			assert.Equal(t, map[string]any{"key": "some <value> with more text"}, got)
		})
	}
}

func TestSortingBy_Nested(t *testing.T) {
	input := map[string]any{
		"subsegments": []any{
			map[string]any{
				"name": "mysubsegment",
				"subsegments": []any{
					map[string]any{"name": "b"},
					map[string]any{"name": "a"},
				},
			},
		},
	}

	got := apply(t, input, SortingBy("subsegments", "name"))

	assert.Equal(t, canon.MustFromGo(map[string]any{
		"subsegments": []any{
			map[string]any{
				"name": "mysubsegment",
				"subsegments": []any{
					map[string]any{"name": "a"},
					map[string]any{"name": "b"},
				},
			},
		},
	}), got)
}

func TestSorting_CustomCompare(t *testing.T) {
	got := apply(t, map[string]any{"ids": []any{3, 1, 2}}, Sorting("ids", func(a, b any) int {
		return CompareValues(b, a)
	}))
	assert.Equal(t, map[string]any{"ids": []any{int64(3), int64(2), int64(1)}}, got)
}

func TestSorting_NotAList(t *testing.T) {
	_, err := NewPipeline(SortingBy("items", "name")).Apply(map[string]any{"items": "nope"})
	var te *TransformError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "$.items", te.Path.String())
}

func TestCompareValues(t *testing.T) {
	ordered := []any{nil, false, true, int64(-1), 0.5, int64(2), "a", "b", []any{}, map[string]any{}}
	for i := 1; i < len(ordered); i++ {
		assert.Equal(t, -1, CompareValues(ordered[i-1], ordered[i]), "%v < %v", ordered[i-1], ordered[i])
		assert.Equal(t, 1, CompareValues(ordered[i], ordered[i-1]))
	}
	assert.Equal(t, 0, CompareValues(int64(2), 2.0))
}

func TestJSONString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"simple_json_object", `{"a": "b"}`, map[string]any{"a": "b"}},
		{"formatted_json_object", "{\n  \"a\": \"b\"\n}", map[string]any{"a": "b"}},
		{"json_with_whitespaces", "\n  {\"a\": \"b\"}", map[string]any{"a": "b"}},
		{"malformed_json", `{"a": 42}malformed`, `{"a": 42}malformed`},
		{"simple_json_list", `["a", "b"]`, []any{"a", "b"}},
		{"nested_json_object", `{"a": "{\"b\":42}"}`, map[string]any{"a": map[string]any{"b": int64(42)}}},
		{"nested_formatted_json_object_with_whitespaces", `{"a": "\n  {\n  \"b\":42}"}`, map[string]any{"a": map[string]any{"b": int64(42)}}},
		{"nested_json_list", `{"a": "[{\"b\":\"c\"}]"}`, map[string]any{"a": []any{map[string]any{"b": "c"}}}},
		{"malformed_nested_json", `{"a": "{\"b\":42malformed}"}`, map[string]any{"a": `{"b":42malformed}`}},
		{"empty_list", `[]`, []any{}},
		{"empty_object", `{}`, map[string]any{}},
		{"empty_string", ``, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := apply(t, map[string]any{"key": tt.input}, JSONString("key"))
			assert.Equal(t, map[string]any{"key": tt.want}, got)
		})
	}
}

func TestJSONString_NestedKey(t *testing.T) {
	key := "nested-key-in-an-object-hidden-inside-a-list"
	got := apply(t, map[string]any{"top-level-key": []any{map[string]any{key: `{"a": "b"}`}}}, JSONString(key))
	assert.Equal(t, map[string]any{"top-level-key": []any{map[string]any{key: map[string]any{"a": "b"}}}}, got)
}

func TestTimestamp(t *testing.T) {
	input := map[string]any{
		"lambda_": map[string]any{
			"FunctionName": "lambdafn",
			"LastModified": "2023-10-09T12:49:50.000+0000",
		},
		"cfn": map[string]any{
			"StackName":    "cfnstack",
			"CreationTime": "2023-11-20T18:39:36.014000+00:00",
		},
		"sfn": map[string]any{
			"name":         "statemachine",
			"creationDate": "2023-11-21T07:14:12.243000+01:00",
			"sfninternal":  "2023-11-21T07:14:12.243Z",
		},
		"s3": []any{"2023-11-21T07:14:12Z"},
	}

	got := apply(t, input, Timestamp())

	assert.Equal(t, canon.MustFromGo(map[string]any{
		"lambda_": map[string]any{
			"FunctionName": "lambdafn",
			"LastModified": "<timestamp:2022-07-13T13:48:01.000+0000>",
		},
		"cfn": map[string]any{
			"StackName":    "cfnstack",
			"CreationTime": "<timestamp:2022-07-13T13:48:01.000000+00:00>",
		},
		"sfn": map[string]any{
			"name":         "statemachine",
			"creationDate": "<timestamp:2022-07-13T13:48:01.000000+00:00>",
			"sfninternal":  "<timestamp:2022-07-13T13:48:01.000Z>",
		},
		"s3": []any{"<timestamp:2022-07-13T13:48:01Z>"},
	}), got)
}

func TestDatetime(t *testing.T) {
	input := map[string]any{
		"date":    "Mon, 02 Jan 2006 15:04:05 GMT",
		"created": "2006-01-02 15:04:05",
		"iso":     "2023-11-21T07:14:12.243456789Z",
		"version": "2006",
		"clock":   "12:30",
		"name":    "report-2006-01-02",
	}

	got := apply(t, input, Datetime(""))

	assert.Equal(t, map[string]any{
		"date":    "<timestamp>",
		"created": "<timestamp>",
		"iso":     "<timestamp>",
		"version": "2006",
		"clock":   "12:30",
		"name":    "report-2006-01-02",
	}, got)
}

func TestUUID(t *testing.T) {
	a := "4c2e3e2a-7d8b-4f5c-9b1d-2f6a8e9c0d1e"
	b := "0b7f0e7c-3a52-4e1b-8a4c-6f1d2e3c4b5a"
	input := map[string]any{
		"first":  a,
		"second": "arn:thing/" + b,
		"nested": map[string]any{a: b},
		"list":   []any{strings.ToUpper("not-a-uuid"), a},
	}

	got := apply(t, input, UUID())

	assert.Equal(t, map[string]any{
		"first":  "<uuid:1>",
		"second": "arn:thing/<uuid:2>",
		"nested": map[string]any{"<uuid:1>": "<uuid:2>"},
		"list":   []any{"NOT-A-UUID", "<uuid:1>"},
	}, got)
}

func TestUUID_CaseInsensitive(t *testing.T) {
	lower := "4c2e3e2a-7d8b-4f5c-9b1d-2f6a8e9c0d1e"
	input := map[string]any{
		"request":  lower,
		"response": "id=" + strings.ToUpper(lower),
	}

	got := apply(t, input, UUID())

	assert.Equal(t, map[string]any{
		"request":  "<uuid:1>",
		"response": "id=<uuid:1>",
	}, got)
}

func TestTimestamp_FractionNeedsDot(t *testing.T) {
	input := map[string]any{
		"millis":  "2024-01-01T00:00:00x123Z",
		"offset":  "2024-01-01T00:00:00x123+0000",
		"micros":  "2024-01-01T00:00:00x123456+00:00",
		"matched": "2024-01-01T00:00:00.123Z",
	}

	got := apply(t, input, Timestamp())

	assert.Equal(t, map[string]any{
		"millis":  "2024-01-01T00:00:00x123Z",
		"offset":  "2024-01-01T00:00:00x123+0000",
		"micros":  "2024-01-01T00:00:00x123456+00:00",
		"matched": "<timestamp:2022-07-13T13:48:01.000Z>",
	}, got)
}

func TestJSONPath_Direct(t *testing.T) {
	input := map[string]any{
		"Owner": map[string]any{"ID": "abc", "Name": "me"},
		"Items": []any{
			map[string]any{"Owner": map[string]any{"ID": "def"}, "Size": 3},
		},
	}

	got := apply(t, input, JSONPath("$..Owner.ID", "<owner-id>", Direct()))

	assert.Equal(t, canon.MustFromGo(map[string]any{
		"Owner": map[string]any{"ID": "<owner-id>", "Name": "me"},
		"Items": []any{
			map[string]any{"Owner": map[string]any{"ID": "<owner-id>"}, "Size": 3},
		},
	}), got)
}

func TestJSONPath_DirectNonString(t *testing.T) {
	got := apply(t, map[string]any{"Size": 3, "Other": 3}, JSONPath("$.Size", "<size>", Direct()))
	assert.Equal(t, map[string]any{"Size": "<size>", "Other": int64(3)}, got)
}

func TestParseJSONPath_Invalid(t *testing.T) {
	_, err := ParseJSONPath("$[", "x")
	assert.Error(t, err)
}

func TestRemovePaths(t *testing.T) {
	input := canon.MustFromGo(map[string]any{
		"RequestId": "r1",
		"Items": []any{
			map[string]any{"RequestId": "r2", "v": 1},
			"drop",
			"keep",
		},
	})

	got := RemovePaths(input, jsonpath.MustParse("$..RequestId"), jsonpath.MustParse("$.Items[1]"))

	assert.Equal(t, canon.MustFromGo(map[string]any{
		"Items": []any{map[string]any{"v": 1}, "keep"},
	}), got)
	assert.Equal(t, "r1", input.(map[string]any)["RequestId"], "input must not change")
}

func TestExpandJSONObjects(t *testing.T) {
	input := canon.MustFromGo(map[string]any{
		"body":    `{"message": "{\"inner\": true}", "n": 1}`,
		"list":    []any{map[string]any{"payload": `{"a": 1}`}, `{"not": "parsed"}`},
		"array":   `["not", "parsed"]`,
		"broken":  `{"a":`,
		"padding": ` {"a": 1}`,
	})

	got := ExpandJSONObjects(input)

	assert.Equal(t, canon.MustFromGo(map[string]any{
		"body":    map[string]any{"message": map[string]any{"inner": true}, "n": 1},
		"list":    []any{map[string]any{"payload": map[string]any{"a": 1}}, `{"not": "parsed"}`},
		"array":   `["not", "parsed"]`,
		"broken":  `{"a":`,
		"padding": ` {"a": 1}`,
	}), got)
}
