package openrpc_test

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/openrpc-go"
)

type AddParams struct {
	A int `json:"a" jsonschema:"description=First addend"`
	B int `json:"b" default:"10"`
}

func Example() {
	srv := openrpc.NewServer(openrpc.Info{Title: "calc", Version: "1.0.0"})

	_ = srv.Method("add").
		Summary("Add two integers").
		Handler(func(ctx context.Context, p AddParams) (int, error) {
			return p.A + p.B, nil
		})

	ctx := context.Background()
	fmt.Println(string(srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","method":"add","params":[2,3],"id":1}`))))
	fmt.Println(string(srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","method":"add","params":{"a":2},"id":2}`))))
	fmt.Println(string(srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","method":"sub","id":3}`))))
	// Output:
	// {"jsonrpc":"2.0","id":1,"result":5}
	// {"jsonrpc":"2.0","id":2,"result":12}
	// {"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"Method not found","data":"sub"}}
}

func ExampleServer_Discover() {
	srv := openrpc.NewServer(openrpc.Info{Title: "calc", Version: "1.0.0"})
	_ = srv.Register("add", func(p AddParams) (int, error) { return p.A + p.B, nil })

	doc := srv.Discover()
	for _, m := range doc.Methods {
		for _, p := range m.Params {
			fmt.Printf("%s.%s required=%v\n", m.Name, p.Name, p.Required)
		}
	}
	// Output:
	// add.a required=true
	// add.b required=false
}

func ExampleOptional() {
	type SearchParams struct {
		Query string                    `json:"query"`
		Limit openrpc.Optional[int]     `json:"limit"`
		Tag   openrpc.Optional[*string] `json:"tag"`
	}

	srv := openrpc.NewServer(openrpc.Info{Title: "search"})
	_ = srv.Register("search", func(p SearchParams) (string, error) {
		limit := "unset"
		if v, ok := p.Limit.Get(); ok {
			limit = fmt.Sprint(v)
		}
		tag := "undefined"
		if v, ok := p.Tag.Get(); ok {
			tag = "null"
			if v != nil {
				tag = *v
			}
		}
		return p.Query + " limit=" + limit + " tag=" + tag, nil
	})

	ctx := context.Background()
	fmt.Println(string(srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","method":"search","params":{"query":"go"},"id":1}`))))
	fmt.Println(string(srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","method":"search","params":{"query":"go","limit":5,"tag":null},"id":2}`))))
	// Output:
	// {"jsonrpc":"2.0","id":1,"result":"go limit=unset tag=undefined"}
	// {"jsonrpc":"2.0","id":2,"result":"go limit=5 tag=null"}
}

func ExampleDefaultMiddlewareWithTimeout() {
	srv := openrpc.NewServer(openrpc.Info{Title: "server", Version: "1.0.0"})
	srv.Use(openrpc.Recover(), openrpc.RequestID())

	// openrpc.ServeHTTPWithMiddleware(ctx, srv, ":8080", nil,
	//     openrpc.WithMiddleware(openrpc.DefaultMiddlewareWithTimeout(logger, 30*time.Second)...),
	// )

	fmt.Println(srv.Info().Title)
	// Output: server
}
