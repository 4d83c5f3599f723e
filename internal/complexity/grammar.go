package complexity

// grammar lists the tree-sitter node types that matter for one language.
type grammar struct {
	// functions open a new measured unit.
	functions []string
	// decisions add one to cyclomatic complexity; binary nodes only count for && and ||.
	decisions []string
	// nesting raise the cognitive nesting penalty of their descendants.
	nesting []string
	// wordOperators marks grammars spelling boolean operators as "and"/"or" node types.
	wordOperators bool
}

var jsLike = grammar{
	functions: []string{"function_declaration", "function_expression", "arrow_function", "method_definition", "generator_function_declaration"},
	decisions: []string{"if_statement", "for_statement", "for_in_statement", "while_statement", "do_statement",
		"switch_case", "catch_clause", "ternary_expression", "binary_expression", "optional_chain_expression"},
	nesting: []string{"if_statement", "for_statement", "for_in_statement", "while_statement", "do_statement",
		"switch_statement", "try_statement", "arrow_function", "function_expression"},
}

var grammars = map[Language]grammar{
	LangGo: {
		functions: []string{"function_declaration", "method_declaration", "func_literal"},
		decisions: []string{"if_statement", "for_statement", "range_clause", "expression_case", "type_case",
			"select_statement", "communication_case", "binary_expression"},
		nesting: []string{"if_statement", "for_statement", "select_statement", "type_switch_statement",
			"expression_switch_statement", "func_literal"},
	},
	LangJavaScript: jsLike,
	LangTypeScript: jsLike,
	LangTSX:        jsLike,
	LangPython: {
		functions: []string{"function_definition", "lambda"},
		decisions: []string{"if_statement", "elif_clause", "for_statement", "while_statement", "except_clause",
			"with_statement", "boolean_operator", "conditional_expression", "list_comprehension",
			"dictionary_comprehension", "set_comprehension", "generator_expression"},
		nesting: []string{"if_statement", "for_statement", "while_statement", "try_statement", "with_statement",
			"lambda", "list_comprehension", "dictionary_comprehension", "set_comprehension", "generator_expression"},
		wordOperators: true,
	},
	LangRust: {
		functions: []string{"function_item", "closure_expression"},
		decisions: []string{"if_expression", "match_expression", "match_arm", "while_expression",
			"loop_expression", "for_expression", "binary_expression"},
		nesting: []string{"if_expression", "match_expression", "while_expression", "loop_expression",
			"for_expression", "closure_expression"},
	},
	LangJava: {
		functions: []string{"method_declaration", "constructor_declaration", "lambda_expression"},
		decisions: []string{"if_statement", "for_statement", "enhanced_for_statement", "while_statement",
			"do_statement", "switch_expression", "switch_block_statement_group", "catch_clause",
			"ternary_expression", "binary_expression"},
		nesting: []string{"if_statement", "for_statement", "enhanced_for_statement", "while_statement",
			"do_statement", "switch_expression", "try_statement", "lambda_expression"},
	},
	LangKotlin: {
		functions: []string{"function_declaration", "lambda_literal", "anonymous_function"},
		decisions: []string{"if_expression", "when_expression", "when_entry", "for_statement", "while_statement",
			"do_while_statement", "catch_block", "binary_expression", "elvis_expression"},
		nesting: []string{"if_expression", "when_expression", "for_statement", "while_statement",
			"do_while_statement", "try_expression", "lambda_literal"},
	},
}

// nodeSets is grammar compiled to lookup sets.
type nodeSets struct {
	functions     map[string]bool
	decisions     map[string]bool
	nesting       map[string]bool
	wordOperators bool
}

func setOf(types []string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

func compiled(lang Language) (nodeSets, bool) {
	g, ok := grammars[lang]
	if !ok {
		return nodeSets{}, false
	}
	return nodeSets{
		functions:     setOf(g.functions),
		decisions:     setOf(g.decisions),
		nesting:       setOf(g.nesting),
		wordOperators: g.wordOperators,
	}, true
}

// anonymousKinds are function node types that have no name of their own.
var anonymousKinds = map[string]bool{
	"arrow_function":      true,
	"func_literal":        true,
	"lambda":              true,
	"lambda_expression":   true,
	"closure_expression":  true,
	"lambda_literal":      true,
	"anonymous_function":  true,
	"function_expression": true,
}
