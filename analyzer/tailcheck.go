package analyzer

import "github.com/emberlang/ember/errors"

// checkTailRecur walks node verifying every `recur` occurs in the tail
// position of its nearest enclosing `loop*` or `fn*` body. The bytecode
// compiler's OpRecur emission depends on this (§4.4: "this is a
// compile-time check and is part of the contract"); the tree walker would
// otherwise silently accept a non-tail recur and propagate its
// recurSignal to whatever loop happens to be listening, corrupting
// unrelated state. Running the check once here, right after analysis,
// means both back ends get it for free.
func checkTailRecur(node *Node, tail bool) error {
	return checkTailRecurIn(node, tail, false)
}

func checkTailRecurIn(node *Node, tail bool, hasTarget bool) error {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case NRecur:
		if !hasTarget {
			return errors.New(errors.InvalidBinding, errors.PhaseAnalysis, node.Pos, "recur used outside a loop or fn")
		}
		if !tail {
			return errors.New(errors.InvalidBinding, errors.PhaseAnalysis, node.Pos, "recur must appear in tail position")
		}
		for _, it := range node.Items {
			if err := checkTailRecurIn(it, false, hasTarget); err != nil {
				return err
			}
		}
		return nil
	case NIf:
		if err := checkTailRecurIn(node.Cond, false, hasTarget); err != nil {
			return err
		}
		if err := checkTailRecurIn(node.Then, tail, hasTarget); err != nil {
			return err
		}
		return checkTailRecurIn(node.Else, tail, hasTarget)
	case NDo:
		return checkBodyTailRecur(node.Items, tail, hasTarget)
	case NLet, NLetfn:
		for _, b := range node.Bindings {
			if err := checkTailRecurIn(b.Init, false, hasTarget); err != nil {
				return err
			}
		}
		return checkBodyTailRecur(node.Body, tail, hasTarget)
	case NLoop:
		for _, b := range node.Bindings {
			if err := checkTailRecurIn(b.Init, false, hasTarget); err != nil {
				return err
			}
		}
		return checkBodyTailRecur(node.Body, true, true)
	case NFn:
		for _, ar := range node.Arities {
			if err := checkBodyTailRecur(ar.Body, true, true); err != nil {
				return err
			}
		}
		return nil
	case NTry:
		for _, n := range node.TryBody {
			if err := checkTailRecurIn(n, false, hasTarget); err != nil {
				return err
			}
		}
		for _, c := range node.Catches {
			for _, n := range c.Body {
				if err := checkTailRecurIn(n, false, hasTarget); err != nil {
					return err
				}
			}
		}
		for _, n := range node.FinallyBody {
			if err := checkTailRecurIn(n, false, hasTarget); err != nil {
				return err
			}
		}
		return nil
	case NCall:
		for _, n := range node.Items {
			if err := checkTailRecurIn(n, false, hasTarget); err != nil {
				return err
			}
		}
		return nil
	case NVectorLit, NSetLit, NMapLit:
		for _, n := range node.Items {
			if err := checkTailRecurIn(n, false, hasTarget); err != nil {
				return err
			}
		}
		return nil
	case NDef:
		return checkTailRecurIn(node.DefInit, false, hasTarget)
	case NThrow:
		return checkTailRecurIn(node.ThrowExpr, false, hasTarget)
	default:
		return nil
	}
}

func checkBodyTailRecur(body []*Node, tail bool, hasTarget bool) error {
	for i, n := range body {
		nodeTail := tail && i == len(body)-1
		if err := checkTailRecurIn(n, nodeTail, hasTarget); err != nil {
			return err
		}
	}
	return nil
}
