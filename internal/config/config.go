package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	clowder "github.com/redhatinsights/app-common-go/pkg/api/v1"
	"github.com/spf13/viper"
)

const (
	ENV_PREFIX = "CONSOLE_LINK"

	URL_APP_NAME          = "URL_App_Name"
	URL_PATH_PREFIX       = "URL_Path_Prefix"
	URL_BASE_PATH         = "URL_Base_Path"
	HTTP_SHUTDOWN_TIMEOUT = "HTTP_Shutdown_Timeout"
	PROFILE               = "Enable_Profile"

	API_BASE_URL           = "API_Base_Url"
	CSRF_COOKIE_NAME       = "CSRF_Cookie_Name"
	CSRF_HEADER_NAME       = "CSRF_Header_Name"
	CSRF_BOOTSTRAP_PATH    = "CSRF_Bootstrap_Path"
	CSRF_MAX_ATTEMPTS      = "CSRF_Max_Attempts"
	CSRF_RETRY_BASE_DELAY  = "CSRF_Retry_Base_Delay_Ms"
	CSRF_SETTLE_DELAY      = "CSRF_Settle_Delay_Ms"
	CSRF_RENEWAL_INTERVAL  = "CSRF_Renewal_Interval_Minutes"
	PRODUCTION_HOSTNAME    = "Production_Hostname"
	PRODUCTION_WS_HOST     = "Production_Websocket_Host"
	ORIGIN_HOST            = "Origin_Host"
	ORIGIN_SCHEME          = "Origin_Scheme"
	WS_RESOURCE            = "Websocket_Resource"
	WS_IDS                 = "Websocket_Ids"
	WS_BASE_INTERVAL       = "Websocket_Reconnect_Base_Interval_Ms"
	WS_MAX_ATTEMPTS        = "Websocket_Max_Reconnect_Attempts"
	WS_MAX_BACKOFF         = "Websocket_Max_Backoff_Ms"
	WS_MAX_JITTER          = "Websocket_Max_Jitter_Ms"
	WS_HANDSHAKE_TIMEOUT   = "Websocket_Handshake_Timeout"
	WS_TLS_CA_CERT_FILE    = "Websocket_Tls_CA_Cert_File"
	WS_TLS_CERT_FILE       = "Websocket_Tls_Cert_File"
	WS_TLS_KEY_FILE        = "Websocket_Tls_Key_File"
	WS_TLS_SKIP_VERIFY     = "Websocket_Tls_Skip_Verify"
	HISTORY_SIZE           = "Message_History_Size"
	SUBSCRIBER_BUFFER_SIZE = "Subscriber_Buffer_Size"

	NOTIFICATION_SINKS           = "Notification_Sinks"
	NOTIFICATION_QUEUE_SIZE      = "Notification_Queue_Size"
	BROKERS                      = "Kafka_Brokers"
	NOTIFICATIONS_TOPIC          = "Kafka_Notifications_Topic"
	NOTIFICATIONS_BATCH_SIZE     = "Kafka_Notifications_Batch_Size"
	NOTIFICATIONS_BATCH_BYTES    = "Kafka_Notifications_Batch_Bytes"
	NOTIFICATIONS_BATCH_TIMEOUT  = "Kafka_Notifications_Batch_Timeout_Ms"
	KAFKA_SASL_MECHANISM         = "Kafka_SASL_Mechanism"
	KAFKA_USERNAME               = "Kafka_Username"
	KAFKA_PASSWORD               = "Kafka_Password"
	KAFKA_CA                     = "Kafka_CA"
	MQTT_BROKER_ADDRESS          = "MQTT_Broker_Address"
	MQTT_BROKER_TLS_CERT_FILE    = "MQTT_Broker_Tls_Cert_File"
	MQTT_BROKER_TLS_KEY_FILE     = "MQTT_Broker_Tls_Key_File"
	MQTT_BROKER_TLS_CA_CERT_FILE = "MQTT_Broker_Tls_CA_Cert_File"
	MQTT_BROKER_TLS_SKIP_VERIFY  = "MQTT_Broker_Tls_Skip_Verify"
	MQTT_RECONNECT_MAX_INTERVAL  = "MQTT_Reconnect_Max_Interval"
	MQTT_CLIENT_ID               = "MQTT_Client_Id"
	MQTT_TOPIC_PREFIX            = "MQTT_Topic_Prefix"
	MQTT_PUBLISH_QOS             = "MQTT_Publish_QoS"
	MQTT_PUBLISH_TIMEOUT         = "MQTT_Publish_Timeout"
	DEFAULT_BROKER_ADDRESS       = "kafka:29092"
	DEFAULT_MQTT_BROKER_ADDRESS  = "ssl://localhost:8883"
)

type Config struct {
	UrlAppName          string
	UrlPathPrefix       string
	UrlBasePath         string
	HttpShutdownTimeout time.Duration
	Profile             bool

	ApiBaseUrl          string `validate:"required,url"`
	CsrfCookieName      string `validate:"required"`
	CsrfHeaderName      string `validate:"required"`
	CsrfBootstrapPath   string `validate:"required"`
	CsrfMaxAttempts     int    `validate:"min=1"`
	CsrfRetryBaseDelay  time.Duration
	CsrfSettleDelay     time.Duration
	CsrfRenewalInterval time.Duration `validate:"gt=0"`

	ProductionHostname      string
	ProductionWebsocketHost string
	OriginHost              string
	OriginScheme            string `validate:"oneof=http https"`

	WebsocketResource              string `validate:"required"`
	WebsocketIds                   []string
	WebsocketReconnectBaseInterval time.Duration `validate:"gt=0"`
	WebsocketMaxReconnectAttempts  int           `validate:"min=0"`
	WebsocketMaxBackoff            time.Duration `validate:"gt=0"`
	WebsocketMaxJitter             time.Duration `validate:"min=0"`
	WebsocketHandshakeTimeout      time.Duration
	WebsocketTlsCACertFile         string
	WebsocketTlsCertFile           string
	WebsocketTlsKeyFile            string
	WebsocketTlsSkipVerify         bool
	MessageHistorySize             int `validate:"min=1"`
	SubscriberBufferSize           int `validate:"min=0"`

	NotificationSinks              []string `validate:"dive,oneof=log kafka mqtt"`
	NotificationQueueSize          int      `validate:"min=1"`
	KafkaBrokers                   []string
	KafkaNotificationsTopic        string
	KafkaNotificationsBatchSize    int
	KafkaNotificationsBatchBytes   int
	KafkaNotificationsBatchTimeout time.Duration
	KafkaSASLMechanism             string
	KafkaUsername                  string
	KafkaPassword                  string
	KafkaCA                        string
	MqttBrokerAddress              string
	MqttBrokerTlsCertFile          string
	MqttBrokerTlsKeyFile           string
	MqttBrokerTlsCACertFile        string
	MqttBrokerTlsSkipVerify        bool
	MqttReconnectMaxInterval       time.Duration
	MqttClientId                   string
	MqttTopicPrefix                string
	MqttPublishQoS                 byte
	MqttPublishTimeout             time.Duration
}

func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", URL_PATH_PREFIX, c.UrlPathPrefix)
	fmt.Fprintf(&b, "%s: %s\n", URL_APP_NAME, c.UrlAppName)
	fmt.Fprintf(&b, "%s: %s\n", URL_BASE_PATH, c.UrlBasePath)
	fmt.Fprintf(&b, "%s: %s\n", HTTP_SHUTDOWN_TIMEOUT, c.HttpShutdownTimeout)
	fmt.Fprintf(&b, "%s: %t\n", PROFILE, c.Profile)
	fmt.Fprintf(&b, "%s: %s\n", API_BASE_URL, c.ApiBaseUrl)
	fmt.Fprintf(&b, "%s: %s\n", CSRF_COOKIE_NAME, c.CsrfCookieName)
	fmt.Fprintf(&b, "%s: %s\n", CSRF_HEADER_NAME, c.CsrfHeaderName)
	fmt.Fprintf(&b, "%s: %s\n", CSRF_BOOTSTRAP_PATH, c.CsrfBootstrapPath)
	fmt.Fprintf(&b, "%s: %d\n", CSRF_MAX_ATTEMPTS, c.CsrfMaxAttempts)
	fmt.Fprintf(&b, "%s: %s\n", CSRF_RETRY_BASE_DELAY, c.CsrfRetryBaseDelay)
	fmt.Fprintf(&b, "%s: %s\n", CSRF_SETTLE_DELAY, c.CsrfSettleDelay)
	fmt.Fprintf(&b, "%s: %s\n", CSRF_RENEWAL_INTERVAL, c.CsrfRenewalInterval)
	fmt.Fprintf(&b, "%s: %s\n", PRODUCTION_HOSTNAME, c.ProductionHostname)
	fmt.Fprintf(&b, "%s: %s\n", PRODUCTION_WS_HOST, c.ProductionWebsocketHost)
	fmt.Fprintf(&b, "%s: %s\n", ORIGIN_HOST, c.OriginHost)
	fmt.Fprintf(&b, "%s: %s\n", ORIGIN_SCHEME, c.OriginScheme)
	fmt.Fprintf(&b, "%s: %s\n", WS_RESOURCE, c.WebsocketResource)
	fmt.Fprintf(&b, "%s: %s\n", WS_IDS, c.WebsocketIds)
	fmt.Fprintf(&b, "%s: %s\n", WS_BASE_INTERVAL, c.WebsocketReconnectBaseInterval)
	fmt.Fprintf(&b, "%s: %d\n", WS_MAX_ATTEMPTS, c.WebsocketMaxReconnectAttempts)
	fmt.Fprintf(&b, "%s: %s\n", WS_MAX_BACKOFF, c.WebsocketMaxBackoff)
	fmt.Fprintf(&b, "%s: %s\n", WS_MAX_JITTER, c.WebsocketMaxJitter)
	fmt.Fprintf(&b, "%s: %s\n", WS_HANDSHAKE_TIMEOUT, c.WebsocketHandshakeTimeout)
	fmt.Fprintf(&b, "%s: %s\n", WS_TLS_CA_CERT_FILE, c.WebsocketTlsCACertFile)
	fmt.Fprintf(&b, "%s: %s\n", WS_TLS_CERT_FILE, c.WebsocketTlsCertFile)
	fmt.Fprintf(&b, "%s: %s\n", WS_TLS_KEY_FILE, c.WebsocketTlsKeyFile)
	fmt.Fprintf(&b, "%s: %t\n", WS_TLS_SKIP_VERIFY, c.WebsocketTlsSkipVerify)
	fmt.Fprintf(&b, "%s: %d\n", HISTORY_SIZE, c.MessageHistorySize)
	fmt.Fprintf(&b, "%s: %d\n", SUBSCRIBER_BUFFER_SIZE, c.SubscriberBufferSize)
	fmt.Fprintf(&b, "%s: %s\n", NOTIFICATION_SINKS, c.NotificationSinks)
	fmt.Fprintf(&b, "%s: %d\n", NOTIFICATION_QUEUE_SIZE, c.NotificationQueueSize)
	fmt.Fprintf(&b, "%s: %s\n", BROKERS, c.KafkaBrokers)
	fmt.Fprintf(&b, "%s: %s\n", NOTIFICATIONS_TOPIC, c.KafkaNotificationsTopic)
	fmt.Fprintf(&b, "%s: %d\n", NOTIFICATIONS_BATCH_SIZE, c.KafkaNotificationsBatchSize)
	fmt.Fprintf(&b, "%s: %d\n", NOTIFICATIONS_BATCH_BYTES, c.KafkaNotificationsBatchBytes)
	fmt.Fprintf(&b, "%s: %s\n", NOTIFICATIONS_BATCH_TIMEOUT, c.KafkaNotificationsBatchTimeout)
	fmt.Fprintf(&b, "%s: %s\n", KAFKA_SASL_MECHANISM, c.KafkaSASLMechanism)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_ADDRESS, c.MqttBrokerAddress)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_TLS_CERT_FILE, c.MqttBrokerTlsCertFile)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_TLS_KEY_FILE, c.MqttBrokerTlsKeyFile)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_TLS_CA_CERT_FILE, c.MqttBrokerTlsCACertFile)
	fmt.Fprintf(&b, "%s: %t\n", MQTT_BROKER_TLS_SKIP_VERIFY, c.MqttBrokerTlsSkipVerify)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_RECONNECT_MAX_INTERVAL, c.MqttReconnectMaxInterval)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_CLIENT_ID, c.MqttClientId)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_TOPIC_PREFIX, c.MqttTopicPrefix)
	fmt.Fprintf(&b, "%s: %d\n", MQTT_PUBLISH_QOS, c.MqttPublishQoS)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_PUBLISH_TIMEOUT, c.MqttPublishTimeout)

	return b.String()
}

// Validate checks the values that the credential and channel layers cannot run without.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func GetConfig() *Config {
	options := viper.New()

	options.SetDefault(URL_PATH_PREFIX, "api")
	options.SetDefault(URL_APP_NAME, "console-link")
	options.SetDefault(HTTP_SHUTDOWN_TIMEOUT, 2)
	options.SetDefault(PROFILE, false)

	options.SetDefault(API_BASE_URL, "http://localhost:8000/api")
	options.SetDefault(CSRF_COOKIE_NAME, "csrftoken")
	options.SetDefault(CSRF_HEADER_NAME, "X-CSRFToken")
	options.SetDefault(CSRF_BOOTSTRAP_PATH, "/ensure-csrf/")
	options.SetDefault(CSRF_MAX_ATTEMPTS, 3)
	options.SetDefault(CSRF_RETRY_BASE_DELAY, 1000)
	options.SetDefault(CSRF_SETTLE_DELAY, 300)
	options.SetDefault(CSRF_RENEWAL_INTERVAL, 30)

	options.SetDefault(PRODUCTION_HOSTNAME, "console.example.com")
	options.SetDefault(PRODUCTION_WS_HOST, "api.console.example.com")
	options.SetDefault(ORIGIN_HOST, "localhost:3000")
	options.SetDefault(ORIGIN_SCHEME, "http")

	options.SetDefault(WS_RESOURCE, "inventory")
	options.SetDefault(WS_IDS, []string{})
	options.SetDefault(WS_BASE_INTERVAL, 1000)
	options.SetDefault(WS_MAX_ATTEMPTS, 5)
	options.SetDefault(WS_MAX_BACKOFF, 30000)
	options.SetDefault(WS_MAX_JITTER, 1000)
	options.SetDefault(WS_HANDSHAKE_TIMEOUT, 10)
	options.SetDefault(WS_TLS_SKIP_VERIFY, false)
	options.SetDefault(HISTORY_SIZE, 100)
	options.SetDefault(SUBSCRIBER_BUFFER_SIZE, 64)

	options.SetDefault(NOTIFICATION_SINKS, []string{"log"})
	options.SetDefault(NOTIFICATION_QUEUE_SIZE, 256)
	options.SetDefault(BROKERS, []string{DEFAULT_BROKER_ADDRESS})
	options.SetDefault(NOTIFICATIONS_TOPIC, "platform.console-link.notifications")
	options.SetDefault(NOTIFICATIONS_BATCH_SIZE, 100)
	options.SetDefault(NOTIFICATIONS_BATCH_BYTES, 1048576)
	options.SetDefault(NOTIFICATIONS_BATCH_TIMEOUT, 50)
	options.SetDefault(MQTT_BROKER_ADDRESS, DEFAULT_MQTT_BROKER_ADDRESS)
	options.SetDefault(MQTT_BROKER_TLS_SKIP_VERIFY, false)
	options.SetDefault(MQTT_RECONNECT_MAX_INTERVAL, 30)
	options.SetDefault(MQTT_CLIENT_ID, "console-link")
	options.SetDefault(MQTT_TOPIC_PREFIX, "redhat")
	options.SetDefault(MQTT_PUBLISH_QOS, 1)
	options.SetDefault(MQTT_PUBLISH_TIMEOUT, 2)

	options.SetEnvPrefix(ENV_PREFIX)
	options.AutomaticEnv()

	kafkaBrokers := options.GetStringSlice(BROKERS)
	if clowder.IsClowderEnabled() && len(clowder.KafkaServers) > 0 {
		kafkaBrokers = clowder.KafkaServers
	}

	return &Config{
		UrlPathPrefix:       options.GetString(URL_PATH_PREFIX),
		UrlAppName:          options.GetString(URL_APP_NAME),
		UrlBasePath:         buildUrlBasePath(options.GetString(URL_PATH_PREFIX), options.GetString(URL_APP_NAME)),
		HttpShutdownTimeout: options.GetDuration(HTTP_SHUTDOWN_TIMEOUT) * time.Second,
		Profile:             options.GetBool(PROFILE),

		ApiBaseUrl:          options.GetString(API_BASE_URL),
		CsrfCookieName:      options.GetString(CSRF_COOKIE_NAME),
		CsrfHeaderName:      options.GetString(CSRF_HEADER_NAME),
		CsrfBootstrapPath:   options.GetString(CSRF_BOOTSTRAP_PATH),
		CsrfMaxAttempts:     options.GetInt(CSRF_MAX_ATTEMPTS),
		CsrfRetryBaseDelay:  options.GetDuration(CSRF_RETRY_BASE_DELAY) * time.Millisecond,
		CsrfSettleDelay:     options.GetDuration(CSRF_SETTLE_DELAY) * time.Millisecond,
		CsrfRenewalInterval: options.GetDuration(CSRF_RENEWAL_INTERVAL) * time.Minute,

		ProductionHostname:      options.GetString(PRODUCTION_HOSTNAME),
		ProductionWebsocketHost: options.GetString(PRODUCTION_WS_HOST),
		OriginHost:              options.GetString(ORIGIN_HOST),
		OriginScheme:            options.GetString(ORIGIN_SCHEME),

		WebsocketResource:              options.GetString(WS_RESOURCE),
		WebsocketIds:                   options.GetStringSlice(WS_IDS),
		WebsocketReconnectBaseInterval: options.GetDuration(WS_BASE_INTERVAL) * time.Millisecond,
		WebsocketMaxReconnectAttempts:  options.GetInt(WS_MAX_ATTEMPTS),
		WebsocketMaxBackoff:            options.GetDuration(WS_MAX_BACKOFF) * time.Millisecond,
		WebsocketMaxJitter:             options.GetDuration(WS_MAX_JITTER) * time.Millisecond,
		WebsocketHandshakeTimeout:      options.GetDuration(WS_HANDSHAKE_TIMEOUT) * time.Second,
		WebsocketTlsCACertFile:         options.GetString(WS_TLS_CA_CERT_FILE),
		WebsocketTlsCertFile:           options.GetString(WS_TLS_CERT_FILE),
		WebsocketTlsKeyFile:            options.GetString(WS_TLS_KEY_FILE),
		WebsocketTlsSkipVerify:         options.GetBool(WS_TLS_SKIP_VERIFY),
		MessageHistorySize:             options.GetInt(HISTORY_SIZE),
		SubscriberBufferSize:           options.GetInt(SUBSCRIBER_BUFFER_SIZE),

		NotificationSinks:              options.GetStringSlice(NOTIFICATION_SINKS),
		NotificationQueueSize:          options.GetInt(NOTIFICATION_QUEUE_SIZE),
		KafkaBrokers:                   kafkaBrokers,
		KafkaNotificationsTopic:        options.GetString(NOTIFICATIONS_TOPIC),
		KafkaNotificationsBatchSize:    options.GetInt(NOTIFICATIONS_BATCH_SIZE),
		KafkaNotificationsBatchBytes:   options.GetInt(NOTIFICATIONS_BATCH_BYTES),
		KafkaNotificationsBatchTimeout: options.GetDuration(NOTIFICATIONS_BATCH_TIMEOUT) * time.Millisecond,
		KafkaSASLMechanism:             options.GetString(KAFKA_SASL_MECHANISM),
		KafkaUsername:                  options.GetString(KAFKA_USERNAME),
		KafkaPassword:                  options.GetString(KAFKA_PASSWORD),
		KafkaCA:                        options.GetString(KAFKA_CA),
		MqttBrokerAddress:              options.GetString(MQTT_BROKER_ADDRESS),
		MqttBrokerTlsCertFile:          options.GetString(MQTT_BROKER_TLS_CERT_FILE),
		MqttBrokerTlsKeyFile:           options.GetString(MQTT_BROKER_TLS_KEY_FILE),
		MqttBrokerTlsCACertFile:        options.GetString(MQTT_BROKER_TLS_CA_CERT_FILE),
		MqttBrokerTlsSkipVerify:        options.GetBool(MQTT_BROKER_TLS_SKIP_VERIFY),
		MqttReconnectMaxInterval:       options.GetDuration(MQTT_RECONNECT_MAX_INTERVAL) * time.Second,
		MqttClientId:                   options.GetString(MQTT_CLIENT_ID),
		MqttTopicPrefix:                options.GetString(MQTT_TOPIC_PREFIX),
		MqttPublishQoS:                 byte(options.GetInt(MQTT_PUBLISH_QOS)),
		MqttPublishTimeout:             options.GetDuration(MQTT_PUBLISH_TIMEOUT) * time.Second,
	}
}

func buildUrlBasePath(pathPrefix string, appName string) string {
	return fmt.Sprintf("/%s/%s/v1", pathPrefix, appName)
}
