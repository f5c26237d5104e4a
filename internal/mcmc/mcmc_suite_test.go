package mcmc_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMCMC(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MCMC Suite")
}
