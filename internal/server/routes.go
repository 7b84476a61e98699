package server

import (
	"errors"
	"net/http"

	"github.com/berfenger/whatwatt2mqtt/internal/config"
	"github.com/berfenger/whatwatt2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type errorsBody struct {
	Errors map[string]string `json:"errors"`
}

type reasonBody struct {
	Reason string `json:"reason"`
}

type entryInput struct {
	MqttTopic string `json:"mqtt_topic"`
	DeviceIp  string `json:"device_ip"`
	Name      string `json:"name"`
}

type deviceBody struct {
	Device      *deviceInfo `json:"device"`
	Online      bool        `json:"online"`
	StatusError string      `json:"status_error,omitempty"`
}

type deviceInfo struct {
	SystemId         string `json:"sys_id"`
	MeterId          string `json:"meter_id,omitempty"`
	Name             string `json:"name"`
	Manufacturer     string `json:"manufacturer"`
	Model            string `json:"model"`
	Version          string `json:"sw_version"`
	ConfigurationUrl string `json:"configuration_url"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api")
	api.GET("/entries", s.ListEntriesHandler)
	api.POST("/entries", s.CreateEntryHandler)
	api.DELETE("/entries/:id", s.DeleteEntryHandler)
	api.GET("/entries/:id/sensors", s.SensorsHandler)
	api.GET("/entries/:id/device", s.DeviceHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, REQUEST_TIMEOUT).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) CreateEntryHandler(c echo.Context) error {
	var input entryInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if errs := config.ValidateEntryInput(config.EntryConfig{MqttTopic: input.MqttTopic, DeviceIp: input.DeviceIp}); len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, errorsBody{Errors: errs})
	}

	res, err := s.request(domain.CreateEntryRequest{
		MqttTopic: input.MqttTopic,
		DeviceIp:  input.DeviceIp,
		Name:      input.Name,
	})
	if err != nil {
		return err
	}
	resp, ok := res.(domain.CreateEntryResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	if resp.HasResponseError() {
		var verr config.ValidationError
		switch {
		case errors.Is(resp.GetResponseError(), domain.ErrEntryExists):
			return c.JSON(http.StatusConflict, reasonBody{Reason: domain.ErrEntryExists.Error()})
		case errors.As(resp.GetResponseError(), &verr):
			return c.JSON(http.StatusBadRequest, errorsBody{Errors: verr.Errors})
		default:
			s.logger.Error("could not create entry", zap.Error(resp.GetResponseError()))
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
	}
	return c.JSON(http.StatusCreated, resp.Entry)
}

func (s *Server) ListEntriesHandler(c echo.Context) error {
	res, err := s.request(domain.ListEntriesRequest{})
	if err != nil {
		return err
	}
	resp, ok := res.(domain.ListEntriesResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, resp.Entries)
}

func (s *Server) DeleteEntryHandler(c echo.Context) error {
	res, err := s.request(domain.UnloadEntryRequest{EntryId: c.Param("id")})
	if err != nil {
		return err
	}
	resp, ok := res.(domain.UnloadEntryResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	if err := entryError(resp); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) SensorsHandler(c echo.Context) error {
	res, err := s.request(domain.GetSensorsRequest{EntryId: c.Param("id")})
	if err != nil {
		return err
	}
	resp, ok := res.(domain.GetSensorsResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	if err := entryError(resp); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp.Sensors)
}

func (s *Server) DeviceHandler(c echo.Context) error {
	res, err := s.request(domain.GetDeviceRequest{EntryId: c.Param("id")})
	if err != nil {
		return err
	}
	resp, ok := res.(domain.GetDeviceResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	if err := entryError(resp); err != nil {
		return err
	}
	body := deviceBody{
		Online:      resp.Online,
		StatusError: resp.StatusError,
	}
	if resp.Device != nil && resp.Identity != nil {
		body.Device = &deviceInfo{
			SystemId:         resp.Identity.SystemId,
			MeterId:          resp.Identity.MeterId,
			Name:             resp.Device.Name,
			Manufacturer:     resp.Device.Manufacturer,
			Model:            resp.Device.Model,
			Version:          resp.Device.Version,
			ConfigurationUrl: resp.Device.ConfigurationUrl,
		}
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) request(msg any) (any, error) {
	res, err := s.rootContext.RequestFuture(s.masterActor, msg, REQUEST_TIMEOUT).Result()
	if err != nil {
		s.logger.Error("actor request failed", zap.Error(err))
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable)
	}
	return res, nil
}

func entryError(resp domain.ActorResponse) error {
	if !resp.HasResponseError() {
		return nil
	}
	if errors.Is(resp.GetResponseError(), domain.ErrEntryNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, domain.ErrEntryNotFound.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, resp.GetResponseError().Error())
}
