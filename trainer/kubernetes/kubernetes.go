// Package kubernetes runs trainer jobs as batch jobs on a cluster. Used when
// fine tuning needs a GPU node rather than the local machine.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"apidocbench/trainer"
)

type Client struct {
	clientset kubernetes.Interface
	namespace string

	// Trainer image and the shared storage mount visible to both this
	// process and the trainer pods.
	image    string
	shareDir string
}

func NewClient(kubeconfig, namespace, image, shareDir string) (*Client, error) {
	var config *rest.Config
	var err error
	if kubeconfig == "" {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("error creating kubernetes client: %w", err)
	}

	slog.Info("creating kubernetes trainer client", "namespace", namespace, "image", image)
	return &Client{clientset: clientset, namespace: namespace, image: image, shareDir: shareDir}, nil
}

func (c *Client) jobSpec(job trainer.Job) *batchv1.Job {
	backoffLimit := int32(0)

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      job.Name,
			Namespace: c.namespace,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:    "trainer",
							Image:   c.image,
							Command: []string{"python", "-m", "trainers." + job.Entrypoint, "--config", job.ConfigPath},
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceCPU:    *resource.NewQuantity(int64(job.Resources.AllocationCores), resource.DecimalSI),
									corev1.ResourceMemory: *resource.NewQuantity(int64(job.Resources.AllocationMemory)<<20, resource.BinarySI),
								},
							},
							VolumeMounts: []corev1.VolumeMount{
								{Name: "share", MountPath: c.shareDir},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: "share",
							VolumeSource: corev1.VolumeSource{
								HostPath: &corev1.HostPathVolumeSource{Path: c.shareDir},
							},
						},
					},
				},
			},
		},
	}
}

func (c *Client) StartJob(job trainer.Job) error {
	ctx := context.Background()
	slog.Info("starting kubernetes trainer job", "job_name", job.Name)

	spec := c.jobSpec(job)

	_, err := c.clientset.BatchV1().Jobs(c.namespace).Get(ctx, job.Name, metav1.GetOptions{})
	if err == nil {
		slog.Info("job resource exists, deleting it", "job_name", job.Name)
		if err := c.deleteJob(ctx, job.Name); err != nil {
			return err
		}
	} else if !apierrors.IsNotFound(err) {
		return fmt.Errorf("error checking for existing job: %w", err)
	}

	if _, err := c.clientset.BatchV1().Jobs(c.namespace).Create(ctx, spec, metav1.CreateOptions{}); err != nil {
		slog.Error("error creating job resource", "job_name", job.Name, "error", err)
		return fmt.Errorf("error creating job resource: %w", err)
	}

	slog.Info("kubernetes trainer job started", "job_name", job.Name)
	return nil
}

func (c *Client) deleteJob(ctx context.Context, jobName string) error {
	propagation := metav1.DeletePropagationBackground
	err := c.clientset.BatchV1().Jobs(c.namespace).Delete(ctx, jobName, metav1.DeleteOptions{PropagationPolicy: &propagation})
	if err != nil {
		slog.Error("error deleting job resource", "job_name", jobName, "error", err)
		return fmt.Errorf("error deleting job resource %v: %w", jobName, err)
	}
	return nil
}

func (c *Client) StopJob(jobName string) error {
	return c.deleteJob(context.Background(), jobName)
}

func (c *Client) JobInfo(jobName string) (trainer.JobInfo, error) {
	job, err := c.clientset.BatchV1().Jobs(c.namespace).Get(context.Background(), jobName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return trainer.JobInfo{}, trainer.ErrJobNotFound
		}
		slog.Error("error getting job info", "job_name", jobName, "error", err)
		return trainer.JobInfo{}, fmt.Errorf("error getting info for job %v: %w", jobName, err)
	}

	status := trainer.StatusPending
	if job.Status.Active > 0 {
		status = trainer.StatusRunning
	} else if job.Status.Succeeded > 0 {
		status = trainer.StatusSucceeded
	} else if job.Status.Failed > 0 {
		status = trainer.StatusFailed
	}

	return trainer.JobInfo{Name: jobName, Status: status}, nil
}

func (c *Client) JobLogs(jobName string) ([]trainer.JobLog, error) {
	ctx := context.Background()

	pods, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "job-name=" + jobName,
	})
	if err != nil {
		slog.Error("error listing pods for job", "job_name", jobName, "error", err)
		return nil, fmt.Errorf("error listing pods for job %v: %w", jobName, err)
	}

	logs := make([]trainer.JobLog, 0, len(pods.Items))
	for _, pod := range pods.Items {
		raw, err := c.clientset.CoreV1().Pods(c.namespace).GetLogs(pod.Name, &corev1.PodLogOptions{}).Do(ctx).Raw()
		if err != nil {
			slog.Error("error fetching pod logs", "pod", pod.Name, "error", err)
			return nil, fmt.Errorf("error fetching logs for pod %v: %w", pod.Name, err)
		}
		// Container runtimes interleave the streams; report them as stdout.
		logs = append(logs, trainer.JobLog{Stdout: string(raw)})
	}

	return logs, nil
}
