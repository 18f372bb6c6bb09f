/*
Package dsl provides a fluent builder for Lattice workflow graphs.

It allows developers to declare nodes, unconditional edges and conditional branches in
Go code instead of assembling domain.Graph values by hand. Declaration order is kept,
so the compiled program and the tool schemas are stable across builds.

Example usage:

	b := dsl.New("newsletter")
	b.Entry("fetch")
	b.Add("fetch", fetch).Describe("Fetch the latest posts").Go("send")
	b.Add("send", send).Terminal()

	graph, err := b.Build()
	if err != nil {
		return err
	}
	engine, err := lattice.New(graph)
*/
package dsl
