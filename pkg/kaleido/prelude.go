// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package kaleido

// DefaultPrelude declares the host output functions and defines the library
// operators. It is loaded unless WithNoPrelude is given.
const DefaultPrelude = `
extern putchard(x);
extern printd(x);

def unary!(v)
  if v then 0 else 1;

def unary-(v)
  0-v;

def binary> 10 (LHS RHS)
  RHS < LHS;

def binary| 5 (LHS RHS)
  if LHS then 1 else if RHS then 1 else 0;

def binary& 6 (LHS RHS)
  if !LHS then 0 else !!RHS;

def binary : 1 (x y) y;
`
