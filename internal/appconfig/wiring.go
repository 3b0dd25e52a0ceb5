package appconfig

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/allowance-go/pkg/approval"
	"github.com/lisanmuaddib/allowance-go/pkg/chains"
	"github.com/lisanmuaddib/allowance-go/pkg/wallet"
	"github.com/lisanmuaddib/allowance-go/pkg/web"
)

// App is the wired application.
type App struct {
	Registry  *chains.Registry
	Routers   *chains.RouterTable
	Connector *wallet.Connector
	Flow      *approval.Flow
	Server    *web.Server
}

// Close releases the chain transports.
func (a *App) Close() {
	a.Connector.Close()
}

// ConfigureRegistry builds the network registry with the RPC overrides applied.
func ConfigureRegistry(config *Config, log *logrus.Logger) (*chains.Registry, error) {
	networks := chains.DefaultNetworks()
	for chainID := range config.RPCOverrides {
		known := false
		for _, n := range networks {
			if n.ChainID == chainID {
				known = true
				break
			}
		}
		if !known {
			log.WithField("chain_id", chainID).Warn("Ignoring RPC override for unknown chain")
		}
	}

	registry, err := chains.NewRegistry(chains.WithRPCOverrides(networks, config.RPCOverrides), chains.DefaultConnectors())
	if err != nil {
		return nil, fmt.Errorf("failed to build network registry: %w", err)
	}
	return registry, nil
}

// SignerSources returns a signer source for every connector with key material.
func SignerSources(config *Config) map[string]wallet.SignerSource {
	sources := make(map[string]wallet.SignerSource)

	if config.PrivateKey != "" {
		key := config.PrivateKey
		sources[chains.ConnectorPrivateKey] = func() (wallet.Signer, error) {
			km, err := wallet.NewKeyManager(key)
			if err != nil {
				return nil, err
			}
			return km, nil
		}
	}

	if config.KeystorePath != "" {
		path, password := config.KeystorePath, config.KeystorePassword
		sources[chains.ConnectorKeystore] = func() (wallet.Signer, error) {
			km, err := wallet.NewKeyManagerFromKeystore(path, password)
			if err != nil {
				return nil, err
			}
			return km, nil
		}
	}

	return sources
}

// ConfigureApp wires registry, connector, flow and HTTP server. A nil dial
// uses ethclient with the configured retries.
func ConfigureApp(ctx context.Context, config *Config, log *logrus.Logger, dial wallet.DialFunc) (*App, error) {
	registry, err := ConfigureRegistry(config, log)
	if err != nil {
		return nil, err
	}

	routers, err := chains.NewRouterTable(chains.DefaultRouterAddresses())
	if err != nil {
		return nil, fmt.Errorf("failed to build router table: %w", err)
	}

	if dial == nil {
		dial = wallet.NewEthDialer(log, wallet.DialConfig{
			MaxRetries: config.DialRetries,
			RetryDelay: config.DialRetryDelay,
		})
	}

	if !config.HasSigner() {
		log.Warn("No PRIVATE_KEY or KEYSTORE_PATH configured, wallet cannot connect")
	}

	connector, err := wallet.NewConnector(ctx, wallet.ConnectorConfig{
		Registry:       registry,
		Sources:        SignerSources(config),
		Dial:           dial,
		DefaultChainID: config.DefaultChainID,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet connector: %w", err)
	}

	flow, err := approval.New(approval.Config{
		Wallet:  connector,
		Routers: routers,
		Gas:     wallet.NewGasResolver(&wallet.GasStrategy{BaseFeeMultiplier: config.BaseFeeMultiplier}, log),
		Logger:  log,
	})
	if err != nil {
		connector.Close()
		return nil, fmt.Errorf("failed to create approval flow: %w", err)
	}

	server, err := web.NewServer(web.Config{
		Connector:        connector,
		Flow:             flow,
		Registry:         registry,
		Routers:          routers,
		Logger:           log,
		ApprovePerMinute: config.ApprovePerMinute,
		WatchReceipts:    config.WatchReceipts,
		ReceiptOptions:   wallet.DefaultReceiptOptions(),
	})
	if err != nil {
		connector.Close()
		return nil, fmt.Errorf("failed to create http server: %w", err)
	}

	log.WithFields(logrus.Fields{
		"chain_id":   config.DefaultChainID,
		"networks":   len(registry.Networks()),
		"routers":    routers.Len(),
		"connectors": connector.Connectors(),
	}).Info("Application configured")

	return &App{
		Registry:  registry,
		Routers:   routers,
		Connector: connector,
		Flow:      flow,
		Server:    server,
	}, nil
}
