// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fabric

import (
	"fmt"
	"path"
	"strings"

	"github.com/hyperledger/leizu/internal/constants"
	"github.com/hyperledger/leizu/internal/docker"
)

// NodeContainer holds what the peer and orderer container definitions are
// rendered from.
type NodeContainer struct {
	Image      string
	Hostname   string
	MSPID      string
	HostIP     string
	Port       int
	CfgPath    string
	TLSEnabled bool
	LogLevel   string
	Metrics    bool
	// Local publishes ports on HostIP only, so several nodes can share one
	// machine through loopback aliases.
	Local      bool
	ExtraHosts []string
	// TLSRootCAs is the number of tlsrootcas/ca<i>.crt files delivered next
	// to an orderer.
	TLSRootCAs int
	Kafka      bool
}

func publish(local bool, ip string, hostPort, containerPort int) string {
	if local && ip != "" {
		return fmt.Sprintf("%s:%d:%d", ip, hostPort, containerPort)
	}
	return fmt.Sprintf("%d:%d", hostPort, containerPort)
}

// CAContainer is the fabric-ca-server of one organization. Affiliations and
// identities must be removable for the affiliation tree to be rewritten.
func CAContainer(image, caName, hostIP, cfgPath string, local, tlsEnabled bool) *docker.Service {
	return &docker.Service{
		ContainerName: caName,
		Image:         image,
		Environment: map[string]string{
			"GODEBUG":                      "netdns=go",
			"FABRIC_CA_SERVER_HOME":        constants.CACfgPath,
			"FABRIC_CA_SERVER_CA_NAME":     caName,
			"FABRIC_CA_SERVER_CSR_CN":      caName,
			"FABRIC_CA_SERVER_TLS_ENABLED": fmt.Sprintf("%t", tlsEnabled),
		},
		Ports:   []string{publish(local, hostIP, constants.PortCA, constants.PortCA)},
		Volumes: []string{fmt.Sprintf("%s:%s", cfgPath, constants.CACfgPath)},
		Logging: docker.StandardLogOptions,
		Command: []string{fmt.Sprintf("fabric-ca-server start -b %s:%s --cfg.affiliations.allowremove --cfg.identities.allowremove -d",
			constants.BootstrapUser, constants.BootstrapSecret)},
	}
}

func PeerContainer(o *NodeContainer) *docker.Service {
	cfg := constants.FabricCfgPath
	svc := &docker.Service{
		ContainerName: o.Hostname,
		Hostname:      o.Hostname,
		Image:         o.Image,
		Network:       constants.DefaultNetworkName,
		WorkingDir:    path.Join(constants.FabricWorkDir, "peer"),
		Environment: map[string]string{
			"CORE_VM_ENDPOINT":                      "unix:///var/run/docker.sock",
			"CORE_VM_DOCKER_ATTACHSTDOUT":           "true",
			"CORE_VM_DOCKER_HOSTCONFIG_NETWORKMODE": constants.DefaultNetworkName,
			"GODEBUG":                               "netdns=go",
			"CORE_PEER_ID":                          o.Hostname,
			"CORE_PEER_ADDRESS":                     fmt.Sprintf("%s:%d", o.Hostname, constants.PortPeer),
			"CORE_PEER_LISTENADDRESS":               fmt.Sprintf("0.0.0.0:%d", constants.PortPeer),
			"CORE_PEER_CHAINCODEADDRESS":            fmt.Sprintf("%s:%d", o.Hostname, constants.PortPeerChaincode),
			"CORE_PEER_CHAINCODELISTENADDRESS":      fmt.Sprintf("0.0.0.0:%d", constants.PortPeerChaincode),
			"CORE_PEER_LOCALMSPID":                  o.MSPID,
			"CORE_PEER_MSPCONFIGPATH":               cfg + "/msp",
			"CORE_PEER_GOSSIP_EXTERNALENDPOINT":     fmt.Sprintf("%s:%d", o.Hostname, constants.PortPeer),
			"CORE_PEER_GOSSIP_ORGLEADER":            "false",
			"CORE_PEER_GOSSIP_USELEADERELECTION":    "true",
			"CORE_PEER_TLS_ENABLED":                 fmt.Sprintf("%t", o.TLSEnabled),
			"CORE_PEER_TLS_CERT_FILE":               cfg + "/tls/server.crt",
			"CORE_PEER_TLS_KEY_FILE":                cfg + "/tls/server.key",
			"CORE_PEER_TLS_ROOTCERT_FILE":           cfg + "/tls/ca.pem",
			"CORE_LOGGING_LEVEL":                    o.LogLevel,
			"FABRIC_LOGGING_SPEC":                   o.LogLevel,
		},
		Ports: []string{publish(o.Local, o.HostIP, o.Port, constants.PortPeer)},
		Volumes: []string{
			"/var/run:/var/run",
			fmt.Sprintf("%s/msp:%s/msp", o.CfgPath, cfg),
			fmt.Sprintf("%s/tls:%s/tls", o.CfgPath, cfg),
		},
		ExtraHosts: o.ExtraHosts,
		Logging:    docker.StandardLogOptions,
		Command:    []string{"peer node start"},
	}
	if o.Metrics {
		svc.Ports = append(svc.Ports, publish(o.Local, o.HostIP, constants.PortPeerMetrics, constants.PortPeerMetrics))
		svc.Environment["CORE_METRICS_PROVIDER"] = "prometheus"
		svc.Environment["CORE_OPERATIONS_LISTENADDRESS"] = fmt.Sprintf("%s:%d", o.Hostname, constants.PortPeerMetrics)
	}
	return svc
}

func OrdererContainer(o *NodeContainer) *docker.Service {
	cfg := path.Join(constants.FabricCfgPath, "orderer")
	cas := make([]string, 0, o.TLSRootCAs+1)
	for i := 0; i < o.TLSRootCAs; i++ {
		cas = append(cas, fmt.Sprintf("%s/tlsrootcas/ca%d.crt", cfg, i))
	}
	cas = append(cas, cfg+"/msp/tlscacerts/cert.pem")
	rootCAs := fmt.Sprintf("[%s]", strings.Join(cas, ","))

	svc := &docker.Service{
		ContainerName: o.Hostname,
		Hostname:      o.Hostname,
		Image:         o.Image,
		Network:       constants.DefaultNetworkName,
		WorkingDir:    path.Join(constants.FabricWorkDir, "orderer"),
		Environment: map[string]string{
			"GODEBUG":                                   "netdns=go",
			"ORDERER_GENERAL_LOGLEVEL":                  o.LogLevel,
			"FABRIC_LOGGING_SPEC":                       o.LogLevel,
			"ORDERER_GENERAL_LISTENADDRESS":             "0.0.0.0",
			"ORDERER_GENERAL_GENESISMETHOD":             "file",
			"ORDERER_GENERAL_GENESISFILE":               cfg + "/" + constants.GenesisBlockFile,
			"ORDERER_GENERAL_LOCALMSPID":                o.MSPID,
			"ORDERER_GENERAL_LOCALMSPDIR":               cfg + "/msp",
			"ORDERER_GENERAL_TLS_ENABLED":               fmt.Sprintf("%t", o.TLSEnabled),
			"ORDERER_GENERAL_TLS_CERTIFICATE":           cfg + "/tls/server.crt",
			"ORDERER_GENERAL_TLS_PRIVATEKEY":            cfg + "/tls/server.key",
			"ORDERER_GENERAL_TLS_ROOTCAS":               rootCAs,
			"ORDERER_GENERAL_CLUSTER_CLIENTCERTIFICATE": cfg + "/tls/server.crt",
			"ORDERER_GENERAL_CLUSTER_CLIENTPRIVATEKEY":  cfg + "/tls/server.key",
			"ORDERER_GENERAL_CLUSTER_ROOTCAS":           rootCAs,
		},
		Ports: []string{publish(o.Local, o.HostIP, o.Port, constants.PortOrderer)},
		Volumes: []string{
			"/var/run:/var/run",
			fmt.Sprintf("%s/msp:%s/msp", o.CfgPath, cfg),
			fmt.Sprintf("%s/tls:%s/tls", o.CfgPath, cfg),
			fmt.Sprintf("%s/tlsrootcas:%s/tlsrootcas", o.CfgPath, cfg),
			fmt.Sprintf("%s/%s:%s/%s", o.CfgPath, constants.GenesisBlockFile, cfg, constants.GenesisBlockFile),
		},
		ExtraHosts: o.ExtraHosts,
		Logging:    docker.StandardLogOptions,
		Command:    []string{"orderer"},
	}
	if o.Kafka {
		svc.Environment["ORDERER_KAFKA_RETRY_SHORTINTERVAL"] = "1s"
		svc.Environment["ORDERER_KAFKA_RETRY_SHORTTOTAL"] = "30s"
		svc.Environment["ORDERER_KAFKA_VERBOSE"] = "true"
	}
	if o.Metrics {
		svc.Ports = append(svc.Ports, publish(o.Local, o.HostIP, constants.PortOrdererMetrics, constants.PortOrdererMetrics))
		svc.Environment["ORDERER_METRICS_PROVIDER"] = "prometheus"
		svc.Environment["ORDERER_OPERATIONS_LISTENADDRESS"] = fmt.Sprintf("%s:%d", o.Hostname, constants.PortOrdererMetrics)
	}
	return svc
}

// ZookeeperContainer is member id (1 based) of an ensemble. servers lists the
// host IP of every member in id order.
func ZookeeperContainer(image string, id int, servers []string, local bool) *docker.Service {
	ensemble := make([]string, len(servers))
	for i, ip := range servers {
		if i+1 == id {
			ip = "0.0.0.0"
		}
		ensemble[i] = fmt.Sprintf("server.%d=%s:2888:3888", i+1, ip)
	}
	hostIP := servers[id-1]
	return &docker.Service{
		ContainerName: fmt.Sprintf("zookeeper%d", id-1),
		Hostname:      fmt.Sprintf("zookeeper%d", id-1),
		Image:         image,
		Network:       constants.DefaultNetworkName,
		Environment: map[string]string{
			"ZOO_MY_ID":   fmt.Sprintf("%d", id),
			"ZOO_SERVERS": strings.Join(ensemble, " "),
		},
		Ports: []string{
			publish(local, hostIP, constants.PortZookeeper, constants.PortZookeeper),
			publish(local, hostIP, 2888, 2888),
			publish(local, hostIP, 3888, 3888),
		},
		Logging: docker.StandardLogOptions,
	}
}

// KafkaContainer is broker id (0 based) of a cluster of brokers hosts.
func KafkaContainer(image string, id int, brokers, zookeepers []string, local bool) *docker.Service {
	connect := make([]string, len(zookeepers))
	for i, ip := range zookeepers {
		connect[i] = fmt.Sprintf("%s:%d", ip, constants.PortZookeeper)
	}
	replication := len(brokers)
	if replication > 3 {
		replication = 3
	}
	minInsync := replication - 1
	if minInsync < 1 {
		minInsync = 1
	}
	hostIP := brokers[id]
	return &docker.Service{
		ContainerName: fmt.Sprintf("kafka%d", id),
		Hostname:      fmt.Sprintf("kafka%d", id),
		Image:         image,
		Network:       constants.DefaultNetworkName,
		Environment: map[string]string{
			"KAFKA_BROKER_ID":                      fmt.Sprintf("%d", id),
			"KAFKA_ZOOKEEPER_CONNECT":              strings.Join(connect, ","),
			"KAFKA_ADVERTISED_HOST_NAME":           hostIP,
			"KAFKA_ADVERTISED_PORT":                fmt.Sprintf("%d", constants.PortKafkaBroker),
			"KAFKA_MESSAGE_MAX_BYTES":              "103809024",
			"KAFKA_REPLICA_FETCH_MAX_BYTES":        "103809024",
			"KAFKA_UNCLEAN_LEADER_ELECTION_ENABLE": "false",
			"KAFKA_DEFAULT_REPLICATION_FACTOR":     fmt.Sprintf("%d", replication),
			"KAFKA_MIN_INSYNC_REPLICAS":            fmt.Sprintf("%d", minInsync),
			"KAFKA_LOG_RETENTION_MS":               "-1",
		},
		Ports:   []string{publish(local, hostIP, constants.PortKafkaBroker, constants.PortKafkaBroker)},
		Logging: docker.StandardLogOptions,
	}
}

func CAdvisorContainer(image string) *docker.Service {
	return &docker.Service{
		ContainerName: "cadvisor",
		Image:         image,
		Network:       constants.DefaultNetworkName,
		Privileged:    true,
		Ports:         []string{fmt.Sprintf("%d:8080", constants.PortCAdvisor)},
		Volumes: []string{
			"/:/rootfs:ro",
			"/var/run:/var/run:rw",
			"/sys:/sys:ro",
			"/var/lib/docker/:/var/lib/docker:ro",
		},
	}
}

// ConsulContainer is a consul agent joining consulServer and advertising the
// host address.
func ConsulContainer(image, host, consulServer string) *docker.Service {
	return &docker.Service{
		ContainerName: "consul-client",
		Image:         image,
		Network:       constants.DefaultNetworkName,
		Ports: []string{
			"8301:8301",
			"8301:8301/udp",
			fmt.Sprintf("%d:%d", constants.PortConsul, constants.PortConsul),
		},
		Command: []string{"agent", "-client=0.0.0.0", "-join=" + consulServer, "-advertise=" + host},
	}
}
