package filter

import (
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gridhq/tablecache/internal/schema"
	"github.com/gridhq/tablecache/pkg/logger"
	"github.com/gridhq/tablecache/pkg/metrics"
)

// Clause is a parameterized SQL fragment with its bound arguments in
// fragment order.
type Clause struct {
	SQL  string
	Args []any
}

// Compiled is the output of one compilation: either a match-all, a flat
// conjunction of conditions, or a single parameterized clause for
// nested/OR trees.
type Compiled struct {
	MatchAll   bool
	Conditions []Condition
	Clause     *Clause
}

// ClauseBuilder renders one condition into a SQL fragment plus bound
// parameters. Implemented by the cache store, which owns the mirror
// table column conventions.
type ClauseBuilder interface {
	BuildCondition(cond Condition) (string, []any, error)
}

// Compiler walks a filter tree and produces a Compiled predicate.
type Compiler struct {
	converter *Converter
	validator *Validator
	builder   ClauseBuilder
	strict    bool
	log       *zap.Logger
}

// NewCompiler wires a Compiler from its collaborators. strict controls
// whether validation failures abort compilation or degrade to warnings.
func NewCompiler(converter *Converter, validator *Validator, builder ClauseBuilder, strict bool) *Compiler {
	return &Compiler{
		converter: converter,
		validator: validator,
		builder:   builder,
		strict:    strict,
		log:       logger.WithModule("filter"),
	}
}

// Compile turns a filter tree into an executable predicate. A nil tree
// or one without leaves matches everything. A flat AND-only tree
// compiles to independent conditions chained conjunctively; any nested
// group, or an OR at the root, forces the whole tree onto the
// recursive parameterized path.
func (c *Compiler) Compile(tree *Node, snap schema.Snapshot) (Compiled, error) {
	start := time.Now()
	defer func() {
		metrics.CompileDuration.Observe(time.Since(start).Seconds())
	}()

	if tree == nil || tree.LeafCount() == 0 {
		return Compiled{MatchAll: true}, nil
	}

	root := tree
	if tree.IsLeaf() {
		root = &Node{Fields: []Node{*tree}}
	}

	if root.Op() == OpAnd && !root.HasGroupChild() {
		conds, err := c.convertLeaves(root.Fields, snap)
		if err != nil {
			return Compiled{}, err
		}
		if len(conds) == 0 {
			return Compiled{MatchAll: true}, nil
		}
		return Compiled{Conditions: conds}, nil
	}

	sql, args, err := c.buildGroup(root, snap)
	if err != nil {
		return Compiled{}, err
	}
	if sql == "" {
		return Compiled{MatchAll: true}, nil
	}
	return Compiled{Clause: &Clause{SQL: sql, Args: args}}, nil
}

func (c *Compiler) convertLeaves(leaves []Node, snap schema.Snapshot) ([]Condition, error) {
	var (
		conds []Condition
		errs  error
	)
	for i := range leaves {
		leaf := &leaves[i]
		cond, ok, err := c.convertLeaf(leaf, snap)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		conds = append(conds, cond)
	}
	if errs != nil {
		return nil, errs
	}
	return conds, nil
}

func (c *Compiler) convertLeaf(leaf *Node, snap schema.Snapshot) (Condition, bool, error) {
	// Schema availability is best-effort: fields without a schema entry
	// skip validation entirely.
	if fieldType, known := snap.TypeOf(leaf.Field); known {
		ok, err := c.validator.Validate(leaf.Field, leaf.Comparison, fieldType, c.strict)
		if err != nil {
			return Condition{}, false, err
		}
		if !ok {
			c.log.Debug("dropping leaf after failed validation",
				zap.String("field", leaf.Field),
				zap.String("operator", leaf.Comparison),
			)
			return Condition{}, false, nil
		}
	}

	return c.converter.Convert(leaf.Field, leaf.Comparison, leaf.Value), true, nil
}

// buildGroup renders one group level into a joined clause. Group
// children recurse and are parenthesized; empty groups contribute
// nothing to the join. Sibling fragments bind their parameters
// independently, in fragment order.
func (c *Compiler) buildGroup(n *Node, snap schema.Snapshot) (string, []any, error) {
	var (
		frags []string
		args  []any
		errs  error
	)

	for i := range n.Fields {
		child := &n.Fields[i]
		if child.IsLeaf() {
			cond, ok, err := c.convertLeaf(child, snap)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if !ok {
				continue
			}
			frag, condArgs, err := c.builder.BuildCondition(cond)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			frags = append(frags, frag)
			args = append(args, condArgs...)
			continue
		}

		sub, subArgs, err := c.buildGroup(child, snap)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if sub == "" {
			continue
		}
		frags = append(frags, "("+sub+")")
		args = append(args, subArgs...)
	}

	if errs != nil {
		return "", nil, errs
	}

	join := " " + strings.ToUpper(n.Op()) + " "
	return strings.Join(frags, join), args, nil
}
