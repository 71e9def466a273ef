package arbor_test

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
)

func ExampleEngine_Advance() {
	t, err := dsl.New().
		State("guard").
		State("patrol").Parent("guard").Priority(5).Exit("tired").
		State("rest").Parent("guard").Priority(1).Enter("tired").Exit("not(tired)").
		Build()
	if err != nil {
		panic(err)
	}

	eng := arbor.New(t)
	_ = eng.RegisterCondition("tired", func(s domain.Scope) bool {
		return s.Tick.World.(map[string]bool)["tired"]
	})

	ctx := context.Background()
	_ = eng.Attach(ctx, "g1", "guard")

	for seq, tired := range []bool{false, false, true, false} {
		out, err := eng.Advance(ctx, "g1", domain.Tick{Seq: uint64(seq), World: map[string]bool{"tired": tired}})
		if err != nil {
			panic(err)
		}
		fmt.Printf("%d: %s %q -> %q\n", seq, out.Kind, out.From, out.To)
	}

	// Output:
	// 0: transition "" -> "patrol"
	// 1: stay "patrol" -> "patrol"
	// 2: transition "patrol" -> "rest"
	// 3: transition "rest" -> "patrol"
}
