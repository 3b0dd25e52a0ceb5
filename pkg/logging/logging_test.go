package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/allowance-go/pkg/logging"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ColoredJSONFormatter", func() {
	var (
		buf bytes.Buffer
		log *logrus.Logger
	)

	BeforeEach(func() {
		buf.Reset()
		f := logging.NewColoredJSONFormatter()
		f.DisableColors = true
		log = logrus.New()
		log.SetOutput(&buf)
		log.SetFormatter(f)
	})

	It("should print level, message and fields on one line", func() {
		log.WithFields(logrus.Fields{
			"chain_id": 42161,
			"tx_hash":  "0xabc",
		}).Info("Approval submitted")

		line := buf.String()
		Expect(strings.Count(line, "\n")).To(Equal(1))
		Expect(line).To(ContainSubstring("INFO    Approval submitted"))
		Expect(line).To(ContainSubstring("chain_id=42161"))
		Expect(line).To(ContainSubstring(`tx_hash="0xabc"`))
	})

	It("should put priority fields before the rest", func() {
		log.WithFields(logrus.Fields{
			"attempt":  2,
			"error":    errors.New("boom"),
			"flow_id":  "f-1",
			"chain_id": 1,
		}).Warn("Retrying")

		line := buf.String()
		flow := strings.Index(line, "flow_id=")
		chain := strings.Index(line, "chain_id=")
		errIdx := strings.Index(line, `error="boom"`)
		attempt := strings.Index(line, "attempt=")
		Expect(flow).To(BeNumerically("<", chain))
		Expect(chain).To(BeNumerically("<", errIdx))
		Expect(errIdx).To(BeNumerically("<", attempt))
	})
})

var _ = Describe("New", func() {
	It("should default to json at info", func() {
		var buf bytes.Buffer
		log := logging.New("", "", &buf)
		Expect(log.GetLevel()).To(Equal(logrus.InfoLevel))

		log.WithField("flow_id", "f-1").Info("hello")
		var entry map[string]interface{}
		Expect(json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
		Expect(entry["msg"]).To(Equal("hello"))
		Expect(entry["flow_id"]).To(Equal("f-1"))
	})

	It("should honour a valid level and the color format", func() {
		log := logging.New("debug", "color", &bytes.Buffer{})
		Expect(log.GetLevel()).To(Equal(logrus.DebugLevel))
		Expect(log.Formatter).To(BeAssignableToTypeOf(&logging.ColoredJSONFormatter{}))
	})

	It("should warn and fall back on an invalid level", func() {
		var buf bytes.Buffer
		log := logging.New("loud", "json", &buf)
		Expect(log.GetLevel()).To(Equal(logrus.InfoLevel))
		Expect(buf.String()).To(ContainSubstring("Invalid log level"))
	})
})
