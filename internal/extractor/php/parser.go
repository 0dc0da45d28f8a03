package php

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

// One pooled parser per goroutine, the same shape as the teacher's
// internal/parser package generalized to every tree-sitter grammar —
// narrowed here to the single PHP grammar this package owns.
var (
	languageOnce sync.Once
	language     *tree_sitter.Language
	parserPool   *sync.Pool
)

func initLanguage() {
	languageOnce.Do(func() {
		language = tree_sitter.NewLanguage(tree_sitter_php.LanguagePHPOnly())
		parserPool = &sync.Pool{
			New: func() any {
				p := tree_sitter.NewParser()
				if err := p.SetLanguage(language); err != nil {
					panic(fmt.Sprintf("php: set language: %v", err))
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
		return nil, fmt.Errorf("php: failed to acquire parser")
	}
	defer parserPool.Put(p)
	tree := p.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("php: parse failed")
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

// firstChildOfKind falls back to a linear scan when a grammar node doesn't
// expose the child we want through a named field — mirrors the teacher's
// own findChildByKind fallback in internal/pipeline/pipeline.go.
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

func childrenOfKind(n *tree_sitter.Node, kind string) []*tree_sitter.Node {
	var out []*tree_sitter.Node
	if n == nil {
		return out
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c != nil && c.Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}
