package car

import (
	"github.com/kodek/tesla"
	"github.com/the-mace/evtools/common"
)

// Creates a tesla.Client from the tool's configuration.
func NewTeslaClientFromConfig(conf common.Vehicle) (*tesla.Client, error) {
	return tesla.NewClient(getTeslaAuth(conf))
}

func getTeslaAuth(conf common.Vehicle) *tesla.Auth {
	teslaConf := conf.TeslaAuth
	return &tesla.Auth{
		ClientID:     teslaConf.ClientId,
		ClientSecret: teslaConf.ClientSecret,
		Email:        teslaConf.Username,
		Password:     teslaConf.Password,
	}
}
