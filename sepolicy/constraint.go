// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2024 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package sepolicy

// ExprKind tags a node of a constraint expression tree.
type ExprKind uint8

const (
	ExprNot   ExprKind = 1
	ExprAnd   ExprKind = 2
	ExprOr    ExprKind = 3
	ExprAttr  ExprKind = 4
	ExprNames ExprKind = 5
)

// Operand names the security context field a leaf compares. The values
// follow the kernel CEXPR_* operand bits.
type Operand uint32

const (
	OperandUser   Operand = 1
	OperandRole   Operand = 2
	OperandType   Operand = 4
	OperandTarget Operand = 8
	OperandXTgt   Operand = 16
)

// IsType reports whether the operand refers to a type (t1, t2 or t3).
func (o Operand) IsType() bool {
	return o&OperandType != 0
}

// ExprOp is the comparison performed by a leaf.
type ExprOp uint32

const (
	OpEq     ExprOp = 1
	OpNeq    ExprOp = 2
	OpDom    ExprOp = 3
	OpDomBy  ExprOp = 4
	OpIncomp ExprOp = 5
)

// ConstraintExpr is a node of a constraint expression tree.
//
// ExprNot uses Left only, ExprAnd and ExprOr use both children. ExprAttr
// compares two context fields selected by Operand; ExprNames compares one
// field against the literal set in Names.
type ConstraintExpr struct {
	Kind    ExprKind
	Operand Operand
	Op      ExprOp
	Names   *TypeSet

	Left  *ConstraintExpr
	Right *ConstraintExpr
}

// Constraint restricts the permissions in Perms of its class to contexts
// satisfying Expr.
type Constraint struct {
	Perms uint32
	Expr  *ConstraintExpr
}

// Walk calls f on every node of the tree in prefix order.
func (e *ConstraintExpr) Walk(f func(*ConstraintExpr)) {
	if e == nil {
		return
	}
	f(e)
	e.Left.Walk(f)
	e.Right.Walk(f)
}

// Depth returns the height of the tree.
func (e *ConstraintExpr) Depth() int {
	if e == nil {
		return 0
	}
	l, r := e.Left.Depth(), e.Right.Depth()
	if r > l {
		l = r
	}
	return l + 1
}

// Names returns a leaf comparing the type operand against a set of types.
func Names(operand Operand, op ExprOp, ids ...TypeID) *ConstraintExpr {
	return &ConstraintExpr{Kind: ExprNames, Operand: operand, Op: op, Names: NewTypeSet(ids...)}
}

func And(l, r *ConstraintExpr) *ConstraintExpr {
	return &ConstraintExpr{Kind: ExprAnd, Left: l, Right: r}
}

func Or(l, r *ConstraintExpr) *ConstraintExpr {
	return &ConstraintExpr{Kind: ExprOr, Left: l, Right: r}
}

func Not(e *ConstraintExpr) *ConstraintExpr {
	return &ConstraintExpr{Kind: ExprNot, Left: e}
}

// Attr returns a leaf comparing two context fields, such as u1 == u2.
func Attr(operand Operand, op ExprOp) *ConstraintExpr {
	return &ConstraintExpr{Kind: ExprAttr, Operand: operand, Op: op}
}
