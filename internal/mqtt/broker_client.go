package mqtt

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/RedHatInsights/console-link/internal/platform/logger"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

var (
	ErrBrokerConnect     = errors.New("mqtt broker connection failed")
	ErrConnectionLost    = errors.New("mqtt connection lost")
	ErrConnectionRefused = errors.New("mqtt connection refused")
	ErrTimeout           = errors.New("mqtt connection timeout")
	ErrEOF               = errors.New("mqtt connection closed unexpectedly")

	ErrConnackRejected = errors.New("mqtt connection rejected by broker")
	ErrNotAuthorized   = errors.New("mqtt not authorized")
)

const (
	CodeConnectionLost    = 104 // ECONNRESET
	CodeConnectionRefused = 111 // ECONNREFUSED
	CodeBrokerConnect     = 520
	CodeTimeout           = 408
	CodeEOF               = 499

	// CONNACK return codes
	CodeBadUsernameOrPassword = 0x04
	CodeNotAuthorized         = 0x05
)

const (
	CategoryNetwork  = "network"
	CategoryProtocol = "protocol"
	CategoryRuntime  = "runtime"
	CategoryUnknown  = "unknown"
)

// ConnectError is an MQTT connect or connection-lost failure with a coarse category.
type ConnectError struct {
	Code     int
	Kind     error
	Cause    error
	Category string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *ConnectError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Kind
}

func (e *ConnectError) Is(target error) bool {
	return target == e.Kind
}

func classify(err error, category string) *ConnectError {
	newError := func(code int, kind error) *ConnectError {
		return &ConnectError{Code: code, Kind: kind, Cause: err, Category: category}
	}

	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce
	}

	var nerr net.Error
	switch {
	case errors.As(err, &nerr) && nerr.Timeout():
		return newError(CodeTimeout, ErrTimeout)
	case errors.Is(err, syscall.ECONNREFUSED):
		return newError(CodeConnectionRefused, ErrConnectionRefused)
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return newError(CodeConnectionLost, ErrConnectionLost)
	case errors.Is(err, io.EOF):
		return newError(CodeEOF, ErrEOF)
	}

	lowerMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerMsg, "connection refused"):
		return newError(CodeConnectionRefused, ErrConnectionRefused)
	case strings.Contains(lowerMsg, "timeout"):
		return newError(CodeTimeout, ErrTimeout)
	case strings.Contains(lowerMsg, "pingresp"), strings.Contains(lowerMsg, "connection lost"):
		return newError(CodeConnectionLost, ErrConnectionLost)
	}

	if category == CategoryRuntime {
		return newError(CodeBrokerConnect, ErrConnectionLost)
	}
	return &ConnectError{Code: CodeBrokerConnect, Kind: ErrBrokerConnect, Cause: err, Category: CategoryUnknown}
}

func classifyReturnCode(rc byte) error {
	cause := fmt.Errorf("connack=%d", rc)

	switch rc {
	case 0x00:
		return nil
	case CodeBadUsernameOrPassword, CodeNotAuthorized:
		return &ConnectError{Code: int(rc), Kind: ErrNotAuthorized, Cause: cause, Category: CategoryProtocol}
	}
	return &ConnectError{Code: int(rc), Kind: ErrConnackRejected, Cause: cause, Category: CategoryProtocol}
}

// ClassifyConnectionLostError is used by the connection lost handler.
func ClassifyConnectionLostError(err error) *ConnectError {
	if err == nil {
		err = ErrConnectionLost
	}
	return classify(err, CategoryRuntime)
}

func CreateBrokerConnection(brokerUrl string, brokerConfigFuncs ...MqttClientOptionsFunc) (MQTT.Client, error) {
	connOpts, err := NewBrokerOptions(brokerUrl, brokerConfigFuncs...)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to build MQTT ClientOptions")
		return nil, err
	}

	mqttClient := MQTT.NewClient(connOpts)
	token := mqttClient.Connect()
	token.Wait()

	if ct, ok := token.(*MQTT.ConnectToken); ok {
		if protoErr := classifyReturnCode(ct.ReturnCode()); protoErr != nil && token.Error() == nil {
			logger.Log.WithFields(logrus.Fields{"error": protoErr}).Error("MQTT CONNACK not accepted")
			return nil, protoErr
		}
	}

	if token.Error() != nil {
		connectErr := classify(token.Error(), CategoryNetwork)
		logger.Log.WithFields(logrus.Fields{"error": connectErr}).Error("Unable to connect to MQTT broker")
		return nil, connectErr
	}

	logger.Log.Info("Connected to MQTT broker: ", brokerUrl)

	return mqttClient, nil
}
