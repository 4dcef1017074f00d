// Package model layers typed accessors over graph nodes.
//
// A user type embeds Model and declares its properties as guard-checked
// accessors:
//
//	type Comment struct{ model.Model }
//
//	func (c Comment) Text() string {
//		s, _ := model.Read(c, textGuard, "text")
//		return s
//	}
//
// References to other models are stored as value.Ref entries and resolved by
// opening the referenced subject; child state is never embedded in the
// parent. A Model bound through a graph.View records every read it performs,
// so views built from models re-run exactly when something they read changes.
package model
