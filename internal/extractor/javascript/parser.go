package javascript

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
)

var (
	languageOnce sync.Once
	language     *tree_sitter.Language
	parserPool   *sync.Pool
)

func initLanguage() {
	languageOnce.Do(func() {
		language = tree_sitter.NewLanguage(tree_sitter_javascript.Language())
		parserPool = &sync.Pool{
			New: func() any {
				p := tree_sitter.NewParser()
				if err := p.SetLanguage(language); err != nil {
					panic(fmt.Sprintf("javascript: set language: %v", err))
				}
				return p
			},
		}
	})
}

func parse(src []byte) (*tree_sitter.Tree, error) {
	initLanguage()
	p, _ := parserPool.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, fmt.Errorf("javascript: failed to acquire parser")
	}
	defer parserPool.Put(p)
	tree := p.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("javascript: parse failed")
	}
	return tree, nil
}

func nodeText(n *tree_sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

func lineOf(n *tree_sitter.Node) int {
	if n == nil {
		return 0
	}
	return int(n.StartPosition().Row) + 1
}

func endLineOf(n *tree_sitter.Node) int {
	if n == nil {
		return 0
	}
	return int(n.EndPosition().Row) + 1
}

func firstChildOfKind(n *tree_sitter.Node, kind string) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}

// unquote strips a leading/trailing quote character (', ", or `) from a
// string/template-literal node's raw text.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}
