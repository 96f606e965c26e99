package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anchorlabs/anchor-edge/chain"
	"github.com/anchorlabs/anchor-edge/network"
	"github.com/anchorlabs/anchor-edge/node"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

func GetCommand() *cobra.Command {
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Starts the node: connects to the remote chain endpoint and joins the network",
		RunE:  runCommand,
	}

	setFlags(serverCmd)

	return serverCmd
}

func setFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&params.chainPath,
		chainFlag,
		"./chain.json",
		"the chain definition file",
	)

	cmd.Flags().StringVar(
		&params.rpcEndpoint,
		rpcEndpointFlag,
		"",
		"the websocket endpoint of the remote chain node. Overrides the chain file",
	)

	cmd.Flags().StringVar(
		&params.libp2pAddr,
		libp2pFlag,
		fmt.Sprintf("0.0.0.0:%d", network.DefaultLibp2pPort),
		"the address and port for the libp2p service (address:port)",
	)

	cmd.Flags().StringVar(
		&params.natAddr,
		natFlag,
		"",
		"the external IP address without port, as can be seen by peers",
	)

	cmd.Flags().StringVar(
		&params.dataDir,
		dataDirFlag,
		"",
		"the directory for the persistent networking key. Empty uses an in-memory key",
	)

	cmd.Flags().Int64Var(
		&params.maxPeers,
		maxPeersFlag,
		network.DefaultConfig().MaxPeers,
		"the client's maximum number of peer connections",
	)

	cmd.Flags().StringVar(
		&params.logLevel,
		logLevelFlag,
		"INFO",
		"the log level for console output",
	)

	cmd.Flags().StringArrayVar(
		&params.joinAddrs,
		joinFlag,
		nil,
		"extra peer multiaddrs to dial on top of the chain bootnodes",
	)
}

func runCommand(cmd *cobra.Command, args []string) error {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "anchor-edge",
		Level: hclog.LevelFromString(params.logLevel),
	})

	importedChain, err := chain.ImportFromFile(params.chainPath)
	if err != nil {
		return fmt.Errorf("unable to import the chain file, %w", err)
	}

	networkConfig, err := params.networkConfig()
	if err != nil {
		return err
	}

	n, err := node.New(cmd.Context(), &node.Config{
		Logger:      logger,
		Chain:       importedChain,
		RPCEndpoint: params.rpcEndpoint,
		Network:     networkConfig,
		JoinAddrs:   params.joinAddrs,
	})
	if err != nil {
		return err
	}

	n.Start()

	if err := waitForShutdown(cmd.Context(), logger, n); err != nil {
		logger.Error("node failed", "err", err)
	}

	return n.Close()
}

func waitForShutdown(ctx context.Context, logger hclog.Logger, n *node.Node) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalCh:
		logger.Info("caught signal, shutting down", "signal", sig)

		return nil
	case <-ctx.Done():
		return nil
	case err := <-n.Fatal():
		return err
	}
}
