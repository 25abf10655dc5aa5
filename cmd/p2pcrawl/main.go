// Command p2pcrawl demonstrates the connection driver against a single
// peer: open, handshake, getaddr, print what came back, close. It carries
// none of the multi-peer orchestration, storage, or metrics that
// cmd/observer adds on top.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/keato/p2pcodec/internal/p2p"
)

func main() {
	host := flag.String("host", "148.251.238.178", "peer host or .onion address")
	port := flag.Uint("port", 8333, "peer port")
	proxyHost := flag.String("proxy-host", "", "SOCKS5 proxy host (required for .onion peers)")
	proxyPort := flag.Uint("proxy-port", 9050, "SOCKS5 proxy port")
	flag.Parse()

	opts := []p2p.Option{}
	if *proxyHost != "" {
		opts = append(opts, p2p.WithProxy(*proxyHost, uint16(*proxyPort)))
	}
	conn := p2p.NewConn(*host, uint16(*port), opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("open")
	if err := conn.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v: %s:%d\n", err, *host, *port)
		os.Exit(1)
	}
	defer func() {
		fmt.Println("close")
		conn.Close()
	}()

	fmt.Println("handshake")
	handshakeMsgs, err := conn.Handshake(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(os.Stderr, "%v: %s:%d\n", err, *host, *port)
		return
	}

	fmt.Println("getaddr")
	addrMsgs, err := conn.GetAddr(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(os.Stderr, "%v: %s:%d\n", err, *host, *port)
	}

	fmt.Printf("%+v\n", handshakeMsgs)
	fmt.Printf("%+v\n", addrMsgs)
}
